package retry_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/icagency/secretary/common/retry"
)

var _ = Describe("Do", func() {
	fastCfg := retry.Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}

	It("returns immediately on success", func() {
		calls := 0
		err := retry.Do(context.Background(), fastCfg, retry.Always, func(context.Context) error {
			calls++
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("retries transient errors up to the attempt cap", func() {
		calls := 0
		err := retry.Do(context.Background(), fastCfg, retry.Always, func(context.Context) error {
			calls++
			return fmt.Errorf("transient")
		})
		Expect(err).To(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	It("recovers when a later attempt succeeds", func() {
		calls := 0
		err := retry.Do(context.Background(), fastCfg, retry.Always, func(context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("transient")
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	It("stops immediately on a non-retryable error", func() {
		calls := 0
		never := func(context.Context, error) bool { return false }
		err := retry.Do(context.Background(), fastCfg, never, func(context.Context) error {
			calls++
			return fmt.Errorf("permanent")
		})
		Expect(err).To(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("honors context cancellation between attempts", func() {
		ctx, cancel := context.WithCancel(context.Background())
		err := retry.Do(ctx, retry.Config{MaxAttempts: 5, BaseDelay: time.Minute}, retry.Always,
			func(context.Context) error {
				cancel()
				return fmt.Errorf("transient")
			})
		Expect(err).To(MatchError(context.Canceled))
	})

	It("treats a zero attempt cap as one attempt", func() {
		calls := 0
		err := retry.Do(context.Background(), retry.Config{}, retry.Always, func(context.Context) error {
			calls++
			return fmt.Errorf("boom")
		})
		Expect(err).To(HaveOccurred())
		Expect(calls).To(Equal(1))
	})
})
