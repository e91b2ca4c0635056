package nntp

import (
	"sync"
	"testing"
)

func TestServerStatsConnections(t *testing.T) {
	stats := NewServerStats()

	stats.ConnectionStarted()
	stats.ConnectionStarted()
	stats.ConnectionEnded()

	if got := stats.GetActiveConnections(); got != 1 {
		t.Errorf("GetActiveConnections = %d, want 1", got)
	}
	if got := stats.GetTotalConnections(); got != 2 {
		t.Errorf("GetTotalConnections = %d, want 2", got)
	}
}

func TestServerStatsCommands(t *testing.T) {
	stats := NewServerStats()

	stats.CommandExecuted("GROUP")
	stats.CommandExecuted("GROUP")
	stats.CommandExecuted("XOVER")

	if got := stats.GetCommandCount("GROUP"); got != 2 {
		t.Errorf("GetCommandCount(GROUP) = %d, want 2", got)
	}
	counts := stats.GetAllCommandCounts()
	if counts["XOVER"] != 1 {
		t.Errorf("GetAllCommandCounts[XOVER] = %d, want 1", counts["XOVER"])
	}

	// The returned map is a copy.
	counts["GROUP"] = 99
	if got := stats.GetCommandCount("GROUP"); got != 2 {
		t.Errorf("GetCommandCount(GROUP) = %d after mutating copy, want 2", got)
	}
}

func TestServerStatsAuth(t *testing.T) {
	stats := NewServerStats()

	stats.AuthSuccess()
	stats.AuthFailure()
	stats.AuthFailure()

	ok, fail := stats.GetAuthStats()
	if ok != 1 || fail != 2 {
		t.Errorf("GetAuthStats = %d, %d, want 1, 2", ok, fail)
	}
}

func TestServerStatsConcurrent(t *testing.T) {
	stats := NewServerStats()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.ConnectionStarted()
				stats.CommandExecuted("LIST")
				stats.ConnectionEnded()
			}
		}()
	}
	wg.Wait()

	if got := stats.GetActiveConnections(); got != 0 {
		t.Errorf("GetActiveConnections = %d, want 0", got)
	}
	if got := stats.GetTotalConnections(); got != 1000 {
		t.Errorf("GetTotalConnections = %d, want 1000", got)
	}
	if got := stats.GetCommandCount("LIST"); got != 1000 {
		t.Errorf("GetCommandCount(LIST) = %d, want 1000", got)
	}
}
