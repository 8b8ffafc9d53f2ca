package memory

import (
	"context"
	"testing"
	"time"

	"github.com/lessonloop/lessonloop/internal/domain"
)

func TestSaveLoadAndLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"m1", "m2", "m3"} {
		err := s.SaveMessages(ctx, "sess_1", []domain.Message{
			{ID: id, Role: domain.RoleUser, Content: id, CreatedAt: base.Add(time.Duration(i) * time.Second)},
		})
		if err != nil {
			t.Fatalf("SaveMessages returned error: %v", err)
		}
	}

	loaded, err := s.LoadMessages(ctx, "sess_1", 2)
	if err != nil {
		t.Fatalf("LoadMessages returned error: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != "m2" || loaded[1].ID != "m3" {
		t.Fatalf("unexpected messages: %+v", loaded)
	}
}

func TestSaveReplacesByID(t *testing.T) {
	s := New()
	ctx := context.Background()

	m := domain.Message{ID: "m1", Role: domain.RoleAssistant, Content: "draft"}
	s.SaveMessages(ctx, "sess_1", []domain.Message{m})
	m.Content = "final"
	s.SaveMessages(ctx, "sess_1", []domain.Message{m})

	loaded, _ := s.LoadMessages(ctx, "sess_1", 0)
	if len(loaded) != 1 || loaded[0].Content != "final" {
		t.Fatalf("replace by id failed: %+v", loaded)
	}
}

func TestLoadCopiesAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.SaveMessages(ctx, "sess_1", []domain.Message{{ID: "m1", Role: domain.RoleUser, Content: "orig"}})
	loaded, _ := s.LoadMessages(ctx, "sess_1", 0)
	loaded[0].Content = "mutated"

	again, _ := s.LoadMessages(ctx, "sess_1", 0)
	if again[0].Content != "orig" {
		t.Fatal("store contents mutated through a returned snapshot")
	}
}
