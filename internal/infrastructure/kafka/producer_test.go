package kafka

import "testing"

func TestTopicFor(t *testing.T) {
	tests := []struct {
		prefix   string
		contract string
		want     string
	}{
		{"relay", "light-client", "relay-light-client"},
		{"", "image-cell", "ckbrelay-calls-image-cell"},
		{"  ", "metadata", "ckbrelay-calls-metadata"},
	}
	for _, tt := range tests {
		if got := TopicFor(tt.prefix, tt.contract); got != tt.want {
			t.Errorf("TopicFor(%q, %q) = %q, want %q", tt.prefix, tt.contract, got, tt.want)
		}
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(ProducerConfig{}); err == nil {
		t.Fatal("expected error without brokers")
	}
	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}})
	if err != nil {
		t.Fatalf("producer: %v", err)
	}
	defer p.Close()
	if got := p.TopicFor("light-client"); got != "ckbrelay-calls-light-client" {
		t.Fatalf("topic %q", got)
	}
}
