package documents

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueueSendReceive(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()

	body, err := encodeJob(analysisJob{ID: "job-1", StorageKey: "resumes/job-1.txt"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := q.Send(ctx, body); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs, err := q.Receive(ctx, 5, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	job, err := decodeJob(msgs[0].Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ID != "job-1" || job.StorageKey != "resumes/job-1.txt" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestMemoryQueueBatchesUpToMax(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := q.Send(ctx, "body"); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	msgs, err := q.Receive(ctx, 2, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected batch of 2, got %d", len(msgs))
	}
}

func TestMemoryQueueReceiveTimesOut(t *testing.T) {
	q := NewMemoryQueue(8)
	start := time.Now()
	msgs, err := q.Receive(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msgs != nil {
		t.Fatalf("expected empty receive, got %v", msgs)
	}
	if time.Since(start) < 500*time.Millisecond {
		t.Fatal("receive returned before the wait elapsed")
	}
}

func TestMemoryQueueReceiveHonorsContext(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := q.Receive(ctx, 1, 0); err == nil {
		t.Fatal("expected context error from blocking receive")
	}
}

func TestEncodeJobAssignsID(t *testing.T) {
	body, err := encodeJob(analysisJob{StorageKey: "k"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	job, err := decodeJob(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected generated job id")
	}
}
