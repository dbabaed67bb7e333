package infra

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestClientName(t *testing.T) {
	cases := map[string]string{
		"TradeGate":        "tradegate",
		" Trade  Gate \n ": "trade-gate",
		"":                 "",
	}
	for in, want := range cases {
		if got := clientName(in); got != want {
			t.Fatalf("clientName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRedisClientNamesConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, "redis://"+mr.Addr(), "Trade Gate")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	name, err := client.ClientGetName(ctx).Result()
	if err != nil {
		t.Fatalf("client getname: %v", err)
	}
	if name != "trade-gate" {
		t.Fatalf("expected connection name trade-gate, got %q", name)
	}
}

func TestConstructorsRequireURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "", "tradegate"); err == nil {
		t.Fatalf("expected error for empty redis url")
	}
	if _, err := NewPostgresPool(context.Background(), "", "tradegate"); err == nil {
		t.Fatalf("expected error for empty database url")
	}
	if _, err := NewRedisClient(context.Background(), "not-a-url", "tradegate"); err == nil {
		t.Fatalf("expected error for malformed redis url")
	}
}
