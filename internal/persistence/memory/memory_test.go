package memory_test

import (
	"testing"

	"github.com/example/advising-portal/internal/persistence"
	"github.com/example/advising-portal/internal/persistence/memory"
	"github.com/example/advising-portal/internal/persistence/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.Store {
		return memory.New()
	})
}
