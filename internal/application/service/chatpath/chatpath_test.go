package chatpath

import (
	"context"
	"testing"
	"time"

	"github.com/vantageplatform/vantage-core/internal/application/service/vantage"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

func vantageLimitsStub() vantage.Limits {
	return vantage.NormalizeLimits(nil, nil, nil, nil)
}

func vantageRoutingStub() vantage.Routing {
	return vantage.DefaultRouting()
}

type fakeChatProvider struct {
	reply string
}

func (f *fakeChatProvider) Chat(ctx context.Context, model string, messages []interfaces.ChatMessage) (string, error) {
	return f.reply, nil
}

type fakeAnswerTraceRepo struct {
	traces map[string]*types.AnswerTrace
}

func (f *fakeAnswerTraceRepo) Insert(ctx context.Context, trace *types.AnswerTrace) error {
	if f.traces == nil {
		f.traces = map[string]*types.AnswerTrace{}
	}
	f.traces[trace.AnswerID] = trace
	return nil
}
func (f *fakeAnswerTraceRepo) Get(ctx context.Context, answerID string) (*types.AnswerTrace, error) {
	return f.traces[answerID], nil
}

type fakeThreadRepo struct {
	lastUserMessageAt *time.Time
}

func (f *fakeThreadRepo) CreateThread(ctx context.Context, thread *types.Thread) error { return nil }
func (f *fakeThreadRepo) GetThread(ctx context.Context, id string) (*types.Thread, error) {
	return nil, nil
}
func (f *fakeThreadRepo) ListThreads(ctx context.Context, userID string) ([]*types.Thread, error) {
	return nil, nil
}
func (f *fakeThreadRepo) RenameThread(ctx context.Context, id, title string) error { return nil }
func (f *fakeThreadRepo) ArchiveThread(ctx context.Context, id string) error       { return nil }
func (f *fakeThreadRepo) DeleteThread(ctx context.Context, id string) error        { return nil }
func (f *fakeThreadRepo) ReassignOwner(ctx context.Context, threadID, canonicalUserID string) error {
	return nil
}
func (f *fakeThreadRepo) InsertChatLog(ctx context.Context, row *types.ChatLogRow) error { return nil }
func (f *fakeThreadRepo) ListMessages(ctx context.Context, threadID string, limit int) ([]*types.ChatLogRow, error) {
	return nil, nil
}
func (f *fakeThreadRepo) LastUserMessageAt(ctx context.Context, userID string) (*time.Time, error) {
	return f.lastUserMessageAt, nil
}
func (f *fakeThreadRepo) ListRecentUserMessages(ctx context.Context, vantageID string, limit int) ([]*types.ChatLogRow, error) {
	return nil, nil
}

func TestClassifySentiment(t *testing.T) {
	if got := ClassifySentiment("thanks, that was really helpful"); got != SentimentPositive {
		t.Fatalf("expected positive, got %s", got)
	}
	if got := ClassifySentiment("that's wrong, not helpful at all"); got != SentimentNegative {
		t.Fatalf("expected negative, got %s", got)
	}
	if got := ClassifySentiment("what's the capital of France"); got != SentimentNeutral {
		t.Fatalf("expected neutral, got %s", got)
	}
}

func TestExtractUserTagSlugifies(t *testing.T) {
	got := ExtractUserTag("that was helpful, tag this as FM Expansion!")
	if got != "fm_expansion" {
		t.Fatalf("expected fm_expansion, got %q", got)
	}
	if got := ExtractUserTag("no tag here"); got != "" {
		t.Fatalf("expected empty tag, got %q", got)
	}
}

func TestBucketTimeGapBoundaries(t *testing.T) {
	cases := map[float64]TimeGapBucket{
		0:           BucketVeryRecent,
		299:         BucketVeryRecent,
		300:         BucketRecent,
		3599:        BucketRecent,
		3600:        BucketSameDay,
		86399:       BucketSameDay,
		86400:       BucketDaysGap,
		7*86400 - 1: BucketDaysGap,
		7 * 86400:   BucketLongGap,
	}
	for elapsed, want := range cases {
		if got := BucketTimeGap(elapsed); got != want {
			t.Errorf("BucketTimeGap(%v) = %s, want %s", elapsed, got, want)
		}
	}
}

func TestQueryGreetingBypassSkipsMemory(t *testing.T) {
	chat := &fakeChatProvider{reply: "Hello! How can I help?"}
	traces := &fakeAnswerTraceRepo{}
	svc := &Service{
		Chat:           chat,
		Traces:         traces,
		Model:          "gpt-4o-mini",
		GreetingBypass: true,
	}
	res, err := svc.Query(context.Background(), "u1", "", "default", "hello", vantageLimitsStub(), vantageRoutingStub())
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if res.Text != "Hello! How can I help?" {
		t.Fatalf("unexpected answer text: %s", res.Text)
	}
	if len(res.MemoryIDs) != 0 {
		t.Fatalf("expected no memory ids for greeting bypass, got %v", res.MemoryIDs)
	}
	if _, ok := traces.traces[res.AnswerID]; !ok {
		t.Fatalf("expected answer trace to be persisted")
	}
}

func TestQueryRitualBypassSkipsMemory(t *testing.T) {
	chat := &fakeChatProvider{reply: "model-x"}
	traces := &fakeAnswerTraceRepo{}
	svc := &Service{
		Chat:         chat,
		Traces:       traces,
		Model:        "gpt-4o-mini",
		RitualBypass: true,
	}
	res, err := svc.Query(context.Background(), "u1", "", "default", "echo model id", vantageLimitsStub(), vantageRoutingStub())
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if res.Text != "model-x" {
		t.Fatalf("unexpected answer text: %s", res.Text)
	}
}
