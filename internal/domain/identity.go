package domain

// Identity es lo que el proveedor de identidad externo resuelve para un request.
// UserID es un string opaco y estable; vacío significa usuario anónimo.
// AnonymousID identifica al cliente sin cuenta para su contador de prueba.
type Identity struct {
	UserID      string
	AnonymousID string
}

// IsSignedIn reporta si el request pertenece a un usuario autenticado.
func (i Identity) IsSignedIn() bool { return i.UserID != "" }
