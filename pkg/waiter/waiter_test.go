package waiter

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func Test_Poll(t *testing.T) {
	RegisterTestingT(t)

	t.Run("succeeds before exhausting attempts", func(t *testing.T) {
		calls := 0
		err := Poll(5, 0, "waiting for thing", func() (bool, error) {
			calls++
			return calls == 3, nil
		})
		Expect(err).To(BeNil())
		Expect(calls).To(Equal(3))
	})

	t.Run("errors count as failed attempts", func(t *testing.T) {
		calls := 0
		err := Poll(3, 0, "waiting for thing", func() (bool, error) {
			calls++
			return false, errTransient
		})
		Expect(err).NotTo(BeNil())
		Expect(calls).To(Equal(3))
		var timeoutErr *TimeoutError
		Expect(asTimeoutError(err, &timeoutErr)).To(BeTrue())
		Expect(timeoutErr.Attempts).To(Equal(3))
	})

	t.Run("predicate invoked up to max_attempts times", func(t *testing.T) {
		calls := 0
		_ = Poll(4, 0, "never succeeds", func() (bool, error) {
			calls++
			return false, nil
		})
		Expect(calls).To(Equal(4))
	})
}

func Test_Retry(t *testing.T) {
	RegisterTestingT(t)

	calls := 0
	val, err := Retry(4, time.Millisecond, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	Expect(err).To(BeNil())
	Expect(val).To(Equal(42))
	Expect(calls).To(Equal(3))
}

var errTransient = &transientErr{}

type transientErr struct{}

func (e *transientErr) Error() string { return "transient failure" }

func asTimeoutError(err error, target **TimeoutError) bool {
	te, ok := err.(*TimeoutError)
	if ok {
		*target = te
	}
	return ok
}
