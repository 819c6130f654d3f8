package services

import (
	"context"
	"errors"
	"testing"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven/mocks"
)

func newStoreRegistry() (*StoreRegistry, *mocks.MockStoreClientFactory) {
	factory := mocks.NewMockStoreClientFactory()
	return NewStoreRegistry(mocks.NewMockStoreConfigStore(), factory, nil), factory
}

func validStore(id string) *domain.Store {
	return &domain.Store{
		ID: id, Name: "Shop", BaseURL: "https://" + id + ".example.com",
		ConsumerKey: "ck", ConsumerSecret: "cs",
		Currency: "USD", Enabled: true,
	}
}

func TestRegisterStore(t *testing.T) {
	registry, factory := newStoreRegistry()
	factory.Register("shop", mocks.NewMockStoreClient())

	if err := registry.RegisterStore(context.Background(), validStore("shop")); err != nil {
		t.Fatalf("RegisterStore: %v", err)
	}

	saved, err := registry.GetStore(context.Background(), "shop")
	if err != nil {
		t.Fatalf("GetStore: %v", err)
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Error("expected timestamps set")
	}
}

func TestRegisterStoreRejectsIncompleteConfig(t *testing.T) {
	registry, _ := newStoreRegistry()

	store := validStore("shop")
	store.ConsumerSecret = ""
	err := registry.RegisterStore(context.Background(), store)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRegisterStoreRejectsUnreachable(t *testing.T) {
	registry, factory := newStoreRegistry()
	client := mocks.NewMockStoreClient()
	client.PingErr = errors.New("connection refused")
	factory.Register("shop", client)

	if err := registry.RegisterStore(context.Background(), validStore("shop")); err == nil {
		t.Fatal("expected error for unreachable store")
	}
}

func TestRemoveStore(t *testing.T) {
	registry, factory := newStoreRegistry()
	factory.Register("shop", mocks.NewMockStoreClient())

	if err := registry.RegisterStore(context.Background(), validStore("shop")); err != nil {
		t.Fatalf("RegisterStore: %v", err)
	}
	if err := registry.RemoveStore(context.Background(), "shop"); err != nil {
		t.Fatalf("RemoveStore: %v", err)
	}
	if _, err := registry.GetStore(context.Background(), "shop"); !errors.Is(err, domain.ErrStoreNotFound) {
		t.Errorf("expected ErrStoreNotFound, got %v", err)
	}
}
