package cache

import (
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "latest with base",
			key:  NewKey("latest", "USD"),
			want: "latest:USD",
		},
		{
			name: "pair keeps order",
			key:  NewKey("pair", "USD", "EUR"),
			want: "pair:USD:EUR",
		},
		{
			name: "no params",
			key:  NewKey("codes"),
			want: "codes:",
		},
		{
			name: "struct literal",
			key:  Key{Endpoint: "pair", Params: []string{"GBP", "JPY"}},
			want: "pair:GBP:JPY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("Key.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKey_OrderSensitive(t *testing.T) {
	a := NewKey("pair", "USD", "EUR").String()
	b := NewKey("pair", "EUR", "USD").String()
	if a == b {
		t.Errorf("pair keys must differ by parameter order, both are %q", a)
	}
}

func TestKey_EndpointSensitive(t *testing.T) {
	a := NewKey("latest", "USD").String()
	b := NewKey("pair", "USD").String()
	if a == b {
		t.Errorf("keys must differ by endpoint, both are %q", a)
	}
}

// TestKey_Determinism ensures same input always produces same key
func TestKey_Determinism(t *testing.T) {
	key := NewKey("pair", "USD", "EUR")

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Errorf("iteration %d = %v, want %v (not deterministic)", i, got, first)
		}
	}
}
