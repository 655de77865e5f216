package di

import (
	"reflect"
	"testing"
)

type greeter struct{ name string }

func TestContainerResolve(t *testing.T) {
	c := NewContainer()
	c.Register("greeter", &greeter{name: "book"})
	c.Register("count", 3)

	g, err := Resolve[*greeter](c, "greeter")
	if err != nil || g.name != "book" {
		t.Fatalf("Resolve() = %v, %v", g, err)
	}
	if _, err := Resolve[*greeter](c, "count"); err == nil {
		t.Error("Resolve() should fail on a type mismatch")
	}
	if _, err := Resolve[*greeter](c, "missing"); err == nil {
		t.Error("Resolve() should fail on a missing service")
	}
	if got := c.GetNames(); !reflect.DeepEqual(got, []string{"count", "greeter"}) {
		t.Errorf("GetNames() = %v", got)
	}

	c.Remove("count")
	if c.Has("count") {
		t.Error("Remove() did not remove the service")
	}
	c.Clear()
	if len(c.GetNames()) != 0 {
		t.Error("Clear() left services behind")
	}
}

func TestGetContainerIsShared(t *testing.T) {
	if GetContainer() != GetContainer() {
		t.Fatal("GetContainer() should return the same instance")
	}
}
