package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"simple-gpt/internal/config"
	"simple-gpt/internal/db"
	"simple-gpt/internal/domain"
	"simple-gpt/internal/llm"
	"simple-gpt/internal/notify"
	"simple-gpt/internal/repository"
	"simple-gpt/internal/service"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	convRepo := repository.NewPgConversationRepository(pool)
	usageRepo := repository.NewPgUsageRepository(pool)
	subRepo := repository.NewPgSubscriptionRepository(pool)

	userID := os.Getenv("CLI_USER_ID")
	if userID == "" {
		userID = "cli-" + uuid.NewString()
		fmt.Printf("Sin CLI_USER_ID; usando usuario efimero %s\n", userID)
	}
	identity := domain.Identity{UserID: userID}

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, zap.NewStdLog(logger))
	tracker := service.NewUsageTracker(logger, subRepo, usageRepo, nil, domain.DefaultPlanLimits(), domain.LimitOf(cfg.AnonymousRequestLimit))
	gateway := service.NewConversationGateway(logger, convRepo)

	session := service.NewSessionManager(
		logger,
		gateway,
		tracker,
		llmClient,
		service.NewMessageCache(),
		service.NewMemoryBackupStore(),
		notify.NewZapNotifier(logger),
		identity,
	)

	if err := session.Refresh(ctx); err != nil {
		log.Fatalf("cargar sesion: %v", err)
	}

	fmt.Println("===== Simple GPT =====")
	fmt.Println("Comandos: /list /select N /new /rename N titulo /delete N /quota /salir")

	for {
		fmt.Printf("[%s] Tu > ", session.Title())
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, session, line); quit {
				return
			}
			continue
		}

		result, err := session.Submit(ctx, line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		switch {
		case result.Blocked && result.SignUpRequired:
			fmt.Println("Prueba gratuita agotada: registrate para seguir preguntando.")
		case result.Blocked:
			fmt.Printf("Limite diario alcanzado (%s).\n", result.Reason)
		case result.Stale:
			// La seleccion cambio mientras respondia; nada que mostrar.
		default:
			fmt.Printf("\nSimple GPT > %s\n\n", result.Reply.Content)
		}
	}
}

func runCommand(ctx context.Context, session *service.SessionManager, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/salir", "/exit", "/quit":
		return true
	case "/list":
		printConversations(session)
	case "/new":
		session.New()
		fmt.Println("Conversacion nueva.")
	case "/select":
		if conv, ok := pickConversation(session, fields); ok {
			if err := session.Select(ctx, conv.ID); err != nil {
				fmt.Printf("Error: %v\n", err)
				break
			}
			for _, m := range session.Transcript() {
				printMessage(m)
			}
		}
	case "/delete":
		if conv, ok := pickConversation(session, fields); ok {
			if err := session.Delete(ctx, conv.ID); err != nil {
				fmt.Printf("Error: %v\n", err)
				break
			}
			fmt.Println("Conversacion borrada.")
		}
	case "/rename":
		if len(fields) < 3 {
			fmt.Println("Uso: /rename N titulo")
			break
		}
		if conv, ok := pickConversation(session, fields[:2]); ok {
			title := strings.Join(fields[2:], " ")
			if err := session.Rename(ctx, conv.ID, title); err != nil {
				fmt.Printf("Error: %v\n", err)
				break
			}
			fmt.Println("Titulo actualizado.")
		}
	case "/quota":
		usage := session.Usage()
		if usage.MessageLimit.IsUnlimited() {
			fmt.Printf("Mensajes hoy: %d (sin limite)\n", usage.MessageCount)
			break
		}
		fmt.Printf("Mensajes hoy: %d de %d", usage.MessageCount, usage.MessageLimit.Value())
		if usage.TimeUntilReset != "" {
			fmt.Printf(" (reset en %s)", usage.TimeUntilReset)
		}
		fmt.Println()
	default:
		fmt.Println("Comando desconocido.")
	}
	return false
}

func printConversations(session *service.SessionManager) {
	conversations := session.Conversations()
	if len(conversations) == 0 {
		fmt.Println("No hay conversaciones todavia.")
		return
	}
	for i, conv := range conversations {
		marker := " "
		if conv.ID == session.CurrentID() {
			marker = "*"
		}
		preview := conv.LastMessage
		if len(preview) > 40 {
			preview = preview[:40] + "..."
		}
		fmt.Printf("%s[%d] %s | %s\n", marker, i+1, conv.Title, preview)
	}
}

func pickConversation(session *service.SessionManager, fields []string) (domain.Conversation, bool) {
	if len(fields) < 2 {
		fmt.Println("Falta el numero de conversacion.")
		return domain.Conversation{}, false
	}
	conversations := session.Conversations()
	idx, err := strconv.Atoi(fields[1])
	if err != nil || idx < 1 || idx > len(conversations) {
		fmt.Println("Seleccion invalida.")
		return domain.Conversation{}, false
	}
	return conversations[idx-1], true
}

func printMessage(m domain.Message) {
	switch m.Role {
	case domain.RoleUser:
		fmt.Printf("Tu > %s\n", m.Content)
	case domain.RoleAssistant:
		fmt.Printf("Simple GPT > %s\n", m.Content)
	case domain.RoleSystem:
	}
}
