package kernel

import "testing"

func TestMutexHandsOffInFIFOOrder(t *testing.T) {
	k := testKernel()
	mu := k.NewMutex()
	var order []TaskID

	body := func(tc *Context) {
		mu.Lock(tc)
		order = append(order, tc.TaskID())
		tc.Yield() // hold across a reschedule
		mu.Unlock(tc)
	}
	a := spawn(t, k, "a", body)
	b := spawn(t, k, "b", body)
	c := spawn(t, k, "c", body)

	tick(k, 20)

	want := []TaskID{a, b, c}
	if len(order) != len(want) {
		t.Fatalf("acquisitions=%d, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("acquisition %d by task %d, want %d", i, order[i], want[i])
		}
	}
	checkConservation(t, k)
}

func TestMutexTryLock(t *testing.T) {
	k := testKernel()
	mu := k.NewMutex()
	var first, second bool

	spawn(t, k, "holder", func(tc *Context) {
		first = mu.TryLock(tc)
		for {
			tc.Yield()
		}
	})
	spawn(t, k, "prober", func(tc *Context) {
		second = mu.TryLock(tc)
	})

	tick(k, 4)

	if !first || second {
		t.Fatalf("TryLock = %v/%v, want true/false", first, second)
	}
}

func TestMutexSkipsDeadWaiter(t *testing.T) {
	k := testKernel()
	mu := k.NewMutex()
	var got TaskID = TaskNone

	holder := spawn(t, k, "holder", func(tc *Context) {
		mu.Lock(tc)
		for i := 0; i < 6; i++ {
			tc.Yield()
		}
		mu.Unlock(tc)
	})
	doomed := spawn(t, k, "doomed", func(tc *Context) {
		mu.Lock(tc)
		defer mu.Unlock(tc)
	})
	spawn(t, k, "survivor", func(tc *Context) {
		mu.Lock(tc)
		got = tc.TaskID()
		mu.Unlock(tc)
	})

	tick(k, 3) // everyone queued behind the holder
	if !k.Kill(doomed) {
		t.Fatalf("Kill(%d) failed", doomed)
	}
	tick(k, 12)

	if got == TaskNone {
		t.Fatalf("survivor never got the mutex")
	}
	if got == holder {
		t.Fatalf("bookkeeping mixed up the acquiring task")
	}
	checkConservation(t, k)
}

func TestCondBroadcastWakesAllWaiters(t *testing.T) {
	k := testKernel()
	mu := k.NewMutex()
	cond := k.NewCond()
	var ready bool
	var woken int

	waiter := func(tc *Context) {
		mu.Lock(tc)
		for !ready {
			cond.Wait(tc, mu)
		}
		woken++
		mu.Unlock(tc)
	}
	spawn(t, k, "w1", waiter)
	spawn(t, k, "w2", waiter)
	spawn(t, k, "setter", func(tc *Context) {
		mu.Lock(tc)
		ready = true
		mu.Unlock(tc)
		cond.Broadcast()
	})

	tick(k, 20)

	if woken != 2 {
		t.Fatalf("woken=%d, want 2", woken)
	}
	checkConservation(t, k)
}

func TestCondSignalWakesOne(t *testing.T) {
	k := testKernel()
	mu := k.NewMutex()
	cond := k.NewCond()
	var hits int

	waiter := func(tc *Context) {
		mu.Lock(tc)
		for hits == 0 {
			cond.Wait(tc, mu)
		}
		hits++
		mu.Unlock(tc)
	}
	spawn(t, k, "w1", waiter)
	spawn(t, k, "w2", waiter)
	spawn(t, k, "setter", func(tc *Context) {
		mu.Lock(tc)
		hits = 1
		mu.Unlock(tc)
		cond.Signal()
	})

	tick(k, 20)

	// Only the signaled waiter proceeds; the other still parks on the
	// condition variable.
	if hits != 2 {
		t.Fatalf("hits=%d, want 2", hits)
	}
	checkConservation(t, k)
}
