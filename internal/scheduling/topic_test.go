package scheduling

import "testing"

func TestCatalogRejectsDepositWithoutAmount(t *testing.T) {
	_, err := NewCatalog(Topic{ID: "bad", Name: "Bad", RequiresDeposit: true})
	if err == nil {
		t.Fatal("expected error for deposit topic without amount")
	}
}

func TestCatalogRejectsDuplicateIDs(t *testing.T) {
	_, err := NewCatalog(Topic{ID: "x", Name: "A"}, Topic{ID: "x", Name: "B"})
	if err == nil {
		t.Fatal("expected error for duplicate topic ids")
	}
}

func TestDefaultTopicsDepositInvariant(t *testing.T) {
	catalog := DefaultTopics()
	if len(catalog.All()) == 0 {
		t.Fatal("catalog must not be empty")
	}
	for _, topic := range catalog.All() {
		if topic.RequiresDeposit && topic.DepositAmount <= 0 {
			t.Fatalf("topic %s requires a deposit but has no amount", topic.ID)
		}
	}
	dev, ok := catalog.Get("development")
	if !ok || !dev.RequiresDeposit {
		t.Fatal("development topic must require a deposit")
	}
	free, ok := catalog.Get("consultation")
	if !ok || free.RequiresDeposit {
		t.Fatal("consultation topic must not require a deposit")
	}
}
