package di

import "testing"

type counter struct{ n int }

func TestContainer_FactoryRunsOnce(t *testing.T) {
	c := NewContainer()
	calls := 0
	tok := NewToken[*counter]("test.Counter")

	RegisterToken(c, tok, func(ServiceRegistry) *counter {
		calls++
		return &counter{n: calls}
	})

	a := GetToken(c, tok)
	b := GetToken(c, tok)

	if a != b {
		t.Error("expected memoized instance")
	}
	if calls != 1 {
		t.Errorf("factory calls = %d, want 1", calls)
	}
}

func TestContainer_NamedValues(t *testing.T) {
	c := NewContainer()
	c.Register("config", "cfg")

	if !c.Has("config") {
		t.Fatal("Has(config) = false")
	}
	if got := c.Get("config").(string); got != "cfg" {
		t.Errorf("Get(config) = %s, want cfg", got)
	}
}

func TestContainer_UnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown service")
		}
	}()
	NewContainer().Get("missing")
}
