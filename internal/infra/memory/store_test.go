package memory

import (
	"testing"

	"mathsprint-service/internal/store"
	"mathsprint-service/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return NewStore()
	})
}
