// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDecision(t *testing.T) {
	before := testutil.ToFloat64(PlaysAccepted.WithLabelValues("realtime", "first_play"))
	RecordDecision(true, "realtime", "first_play")
	after := testutil.ToFloat64(PlaysAccepted.WithLabelValues("realtime", "first_play"))
	if after != before+1 {
		t.Errorf("expected accepted counter to increase by 1, got %v -> %v", before, after)
	}

	before = testutil.ToFloat64(PlaysRejected.WithLabelValues("remote", "within_window"))
	RecordDecision(false, "remote", "within_window")
	after = testutil.ToFloat64(PlaysRejected.WithLabelValues("remote", "within_window"))
	if after != before+1 {
		t.Errorf("expected rejected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestRecordSyncPass(t *testing.T) {
	itemsBefore := testutil.ToFloat64(SyncItemsProcessed)
	RecordSyncPass(2*time.Second, 25, nil)
	itemsAfter := testutil.ToFloat64(SyncItemsProcessed)
	if itemsAfter != itemsBefore+25 {
		t.Errorf("expected items counter to increase by 25, got %v -> %v", itemsBefore, itemsAfter)
	}
	if testutil.ToFloat64(SyncLastSuccess) == 0 {
		t.Error("expected last success timestamp to be set")
	}

	errBefore := testutil.ToFloat64(SyncErrors.WithLabelValues("provider"))
	RecordSyncPass(time.Second, 0, errors.New("provider unreachable"))
	errAfter := testutil.ToFloat64(SyncErrors.WithLabelValues("provider"))
	if errAfter != errBefore+1 {
		t.Errorf("expected error counter to increase by 1, got %v -> %v", errBefore, errAfter)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/stats/today", "200"))
	RecordAPIRequest("GET", "/api/v1/stats/today", "200", 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/stats/today", "200"))
	if after != before+1 {
		t.Errorf("expected request counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestConcurrentRecording(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordDecision(j%2 == 0, "realtime", "window_elapsed")
				RecordQuery("today", time.Millisecond)
			}
		}()
	}
	wg.Wait()
}
