package pubsub

import (
	"context"
	"testing"

	"github.com/scoutledger/backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{project: "ledger-prod", name: "rewards", want: "projects/ledger-prod/topics/rewards"},
		{project: "ledger-prod", name: " projects/other/topics/alerts ", want: "projects/other/topics/alerts"},
		{project: "", name: "rewards", want: ""},
		{project: "ledger-prod", name: "  ", want: ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestTopicNamesSkipsBlank(t *testing.T) {
	names := topicNames(config.PubSubConfig{RewardsTopic: "rewards", AlertsTopic: " "})
	if len(names) != 1 || names[0] != "rewards" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestNilClientPublisher(t *testing.T) {
	var c *Client
	if c.Publisher("rewards") != nil {
		t.Fatal("expected nil publisher from nil client")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error from nil client")
	}
}
