package ratelimit

import (
	"testing"
	"time"
)

func TestAdmitStopsAtLimit(t *testing.T) {
	l := New(10, time.Minute)
	defer l.Close()

	now := time.Now()
	for i := 0; i < 10; i++ {
		if !l.Admit("22990000001", now.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("attempt %d should be admitted", i+1)
		}
	}
	if l.Admit("22990000001", now.Add(11*time.Second)) {
		t.Fatal("11th attempt inside the window should be rejected")
	}
}

func TestAdmitResetsAfterWindow(t *testing.T) {
	l := New(10, time.Minute)
	defer l.Close()

	now := time.Now()
	for i := 0; i < 10; i++ {
		l.Admit("22990000002", now)
	}
	if l.Admit("22990000002", now.Add(30*time.Second)) {
		t.Fatal("expected rejection while window is full")
	}
	if !l.Admit("22990000002", now.Add(61*time.Second)) {
		t.Fatal("expected admission after the window elapsed")
	}
}

func TestIdentitiesAreIndependent(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Close()

	now := time.Now()
	if !l.Admit("a", now) {
		t.Fatal("first identity should be admitted")
	}
	if !l.Admit("b", now) {
		t.Fatal("second identity should be admitted despite first being full")
	}
	if l.Admit("a", now) {
		t.Fatal("first identity should now be rejected")
	}
}

func TestEvictIdleDropsStaleIdentities(t *testing.T) {
	l := New(10, time.Minute)
	defer l.Close()

	now := time.Now()
	l.Admit("stale", now.Add(-5*time.Minute))
	l.Admit("fresh", now)
	if l.Len() != 2 {
		t.Fatalf("expected 2 tracked identities, got %d", l.Len())
	}

	l.evictIdle(now)
	if l.Len() != 1 {
		t.Fatalf("expected stale identity evicted, got %d tracked", l.Len())
	}
	// Eviction must not consume the fresh identity's budget.
	for i := 0; i < 9; i++ {
		if !l.Admit("fresh", now) {
			t.Fatalf("attempt %d for fresh identity should be admitted", i+2)
		}
	}
	if l.Admit("fresh", now) {
		t.Fatal("fresh identity should hit the limit at 10")
	}
}
