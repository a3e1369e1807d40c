package main

import (
	"path/filepath"
	"testing"
)

func TestConfigStoreLoadMissingFileYieldsEmptyMap(t *testing.T) {
	store := NewConfigStore(filepath.Join(t.TempDir(), "missing.json"))

	values, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("expected empty map, got %v", values)
	}
}

func TestConfigStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printbridge.json")
	store := NewConfigStore(path)

	if err := store.Save(map[string]string{ConfigKeyRestaurantID: "rest-1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened := NewConfigStore(path)
	values, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if values[ConfigKeyRestaurantID] != "rest-1" {
		t.Errorf("restaurantId = %q, want rest-1", values[ConfigKeyRestaurantID])
	}
	if values[ConfigKeyUpdatedAt] == "" {
		t.Errorf("expected updatedAt to be stamped")
	}
}

func TestConfigStoreSavePreservesExistingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printbridge.json")
	store := NewConfigStore(path)

	if err := store.Save(map[string]string{ConfigKeyFirebaseProjectID: "proj-1"}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := store.Save(map[string]string{ConfigKeyRestaurantID: "rest-1"}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	values, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if values[ConfigKeyFirebaseProjectID] != "proj-1" {
		t.Errorf("expected firebaseProjectId to survive a later partial Save, got %q", values[ConfigKeyFirebaseProjectID])
	}
	if values[ConfigKeyRestaurantID] != "rest-1" {
		t.Errorf("restaurantId = %q, want rest-1", values[ConfigKeyRestaurantID])
	}
}

func TestConfigStoreClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printbridge.json")
	store := NewConfigStore(path)

	if err := store.Save(map[string]string{ConfigKeyRestaurantID: "rest-1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	store.Clear()

	values, err := store.Load()
	if err != nil {
		t.Fatalf("Load after Clear failed: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("expected empty map after Clear, got %v", values)
	}
}

func TestConfigStoreGetReturnsLastSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printbridge.json")
	store := NewConfigStore(path)

	if err := store.Save(map[string]string{ConfigKeyDeviceName: "front-counter"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got := store.Get(ConfigKeyDeviceName); got != "front-counter" {
		t.Errorf("Get(deviceName) = %q, want front-counter", got)
	}
}
