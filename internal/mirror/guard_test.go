package mirror

import (
	"errors"
	"testing"
	"time"
)

func TestGuard_SerialisesCallers(t *testing.T) {
	var g Guard
	entered := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)

	go func() {
		firstDone <- g.Do(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	if !g.Busy() {
		t.Fatal("Busy() = false while a unit runs, want true")
	}

	secondDone := make(chan struct{})
	go func() {
		g.Do(func() error { return nil })
		close(secondDone)
	}()

	select {
	case <-secondDone:
		t.Fatal("second Do() ran while the first unit held the guard")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Errorf("Do() error = %v, want nil", err)
	}
	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("second Do() did not run after the guard was released")
	}
	if g.Busy() {
		t.Error("Busy() = true after all units finished, want false")
	}
}

func TestGuard_ReturnsError(t *testing.T) {
	var g Guard
	want := errors.New("unit failed")
	if err := g.Do(func() error { return want }); !errors.Is(err, want) {
		t.Errorf("Do() error = %v, want %v", err, want)
	}
	if g.Busy() {
		t.Error("Busy() = true after a failed unit, want false")
	}
}
