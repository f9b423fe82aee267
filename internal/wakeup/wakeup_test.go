package wakeup

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"
)

func TestSignal_CoalescesIntoOneWake(t *testing.T) {
	w := New()

	for range 10 {
		w.Signal()
	}

	if !w.Pending() {
		t.Fatal("expected a pending wake after Signal")
	}
	if w.Pending() {
		t.Error("multiple signals should coalesce into a single wake")
	}
}

func TestSignal_AfterWakeIsNotLost(t *testing.T) {
	w := New()
	w.Signal()
	<-w.C()

	w.Signal()

	select {
	case <-w.C():
	default:
		t.Fatal("signal sent after a wake was lost")
	}
}

func TestSignal_WakesBlockedReceiver(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		w := New()
		woke := make(chan struct{})

		go func() {
			<-w.C()
			close(woke)
		}()

		time.Sleep(time.Second)
		w.Signal()
		synctest.Wait()

		select {
		case <-woke:
		default:
			t.Fatal("receiver was not woken")
		}
	})
}

func TestSignal_ConcurrentCallersNeverBlock(t *testing.T) {
	w := New()

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			for range 100 {
				w.Signal()
			}
		})
	}
	wg.Wait()

	if !w.Pending() {
		t.Error("expected a pending wake")
	}
}
