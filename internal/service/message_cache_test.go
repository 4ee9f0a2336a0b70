package service

import (
	"testing"

	"simple-gpt/internal/domain"
)

func TestMessageCachePutGet(t *testing.T) {
	cache := NewMessageCache()
	msgs := []domain.Message{
		{ID: "m1", Role: domain.RoleUser, Content: "hola"},
		{ID: "m2", Role: domain.RoleAssistant, Content: "hola!"},
	}
	cache.Put("c1", msgs)

	got, ok := cache.Get("c1")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("unexpected cached messages: %+v", got)
	}
}

func TestMessageCacheGetReturnsCopy(t *testing.T) {
	cache := NewMessageCache()
	cache.Put("c1", []domain.Message{{ID: "m1", Content: "original"}})

	got, _ := cache.Get("c1")
	got[0].Content = "mutated"

	again, _ := cache.Get("c1")
	if again[0].Content != "original" {
		t.Fatalf("cache entry leaked a mutable reference")
	}
}

func TestMessageCachePutCopiesInput(t *testing.T) {
	cache := NewMessageCache()
	msgs := []domain.Message{{ID: "m1", Content: "original"}}
	cache.Put("c1", msgs)
	msgs[0].Content = "mutated"

	got, _ := cache.Get("c1")
	if got[0].Content != "original" {
		t.Fatalf("cache stored a reference to the caller slice")
	}
}

func TestMessageCacheDelete(t *testing.T) {
	cache := NewMessageCache()
	cache.Put("c1", []domain.Message{{ID: "m1"}})
	cache.Delete("c1")
	if _, ok := cache.Get("c1"); ok {
		t.Fatalf("expected miss after delete")
	}
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", cache.Len())
	}
}

func TestMessageCacheEmptyIDIgnored(t *testing.T) {
	cache := NewMessageCache()
	cache.Put("", []domain.Message{{ID: "m1"}})
	if cache.Len() != 0 {
		t.Fatalf("empty conversation id must not create an entry")
	}
}
