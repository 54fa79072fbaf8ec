package budget

import "testing"

func TestNewManagerStartsAtZero(t *testing.T) {
	m := NewManager(DefaultConfig())
	if m.TokensUsed() != 0 || m.ToolCalls() != 0 || m.Depth() != 0 {
		t.Fatalf("expected zeroed counters, got tokens=%d toolCalls=%d depth=%d", m.TokensUsed(), m.ToolCalls(), m.Depth())
	}
}

func TestRecordUsageAccumulates(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.RecordUsage(100, 1)
	m.RecordUsage(50, 2)
	if m.TokensUsed() != 150 {
		t.Fatalf("expected 150 tokens, got %d", m.TokensUsed())
	}
	if m.ToolCalls() != 3 {
		t.Fatalf("expected 3 tool calls, got %d", m.ToolCalls())
	}
}

func TestCheckPreCallTokensExceeded(t *testing.T) {
	m := NewManager(Config{MaxTokens: 100})
	m.RecordUsage(150, 0)
	reason := m.CheckPreCall()
	if reason == nil || *reason != ReasonTokens {
		t.Fatalf("expected ReasonTokens breach, got %v", reason)
	}
}

func TestCheckPreCallToolCallsExceeded(t *testing.T) {
	m := NewManager(Config{MaxToolCalls: 2})
	m.RecordUsage(0, 3)
	reason := m.CheckPreCall()
	if reason == nil || *reason != ReasonToolCalls {
		t.Fatalf("expected ReasonToolCalls breach, got %v", reason)
	}
}

func TestCheckPreCallDepthExceeded(t *testing.T) {
	m := NewManager(Config{MaxDepth: 3})
	m.IncrementDepth()
	m.IncrementDepth()
	m.IncrementDepth()
	reason := m.CheckPreCall()
	if reason == nil || *reason != ReasonDepth {
		t.Fatalf("expected ReasonDepth breach, got %v", reason)
	}
}

func TestCheckPreCallWithinLimitsReturnsNil(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.RecordUsage(10, 1)
	if reason := m.CheckPreCall(); reason != nil {
		t.Fatalf("expected no breach, got %v", *reason)
	}
}

func TestIsLastTurn(t *testing.T) {
	m := NewManager(Config{MaxDepth: 5})
	for i := 0; i < 4; i++ {
		m.IncrementDepth()
	}
	if !m.IsLastTurn() {
		t.Fatalf("expected depth 4/5 to be the last turn")
	}
}

func TestWouldExceedDepth(t *testing.T) {
	m := NewManager(Config{MaxDepth: 5})
	for i := 0; i < 4; i++ {
		m.IncrementDepth()
	}
	if !m.WouldExceedDepth() {
		t.Fatalf("expected starting a 5th cycle to exceed depth 5")
	}
}

func TestResolveOverlaysOverrideOntoProcessDefault(t *testing.T) {
	maxTokens := 5000
	resolved := Resolve(DefaultConfig(), Override{MaxTokens: &maxTokens})
	if resolved.MaxTokens != 5000 {
		t.Fatalf("expected overridden MaxTokens=5000, got %d", resolved.MaxTokens)
	}
	if resolved.MaxDepth != DefaultMaxDepth {
		t.Fatalf("expected MaxDepth to remain the process default %d, got %d", DefaultMaxDepth, resolved.MaxDepth)
	}
}

func TestSummaryCarriesTerminatedBy(t *testing.T) {
	m := NewManager(Config{MaxTokens: 10000, MaxDepth: 10})
	m.RecordUsage(500, 3)
	summary := m.Summary(ReasonNatural)
	if summary.TokensUsed != 500 || summary.ToolCalls != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.TerminatedBy != ReasonNatural {
		t.Fatalf("expected TerminatedBy=natural, got %s", summary.TerminatedBy)
	}
}
