package drive

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Run drives the fixed-tick actuation loop until ctx is cancelled. A driver
// write failure is fatal: there is no safe software fallback, so the error
// propagates for the process to act on. On cancellation the loop issues one
// final neutral-stop write before returning.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final neutral write happens on a fresh context; the
			// loop context is already dead.
			if err := c.NeutralStop(context.Background()); err != nil {
				log.Printf("drive: final neutral stop failed: %v", err)
			}
			return nil
		case <-ticker.C:
			if err := c.ApplyTick(ctx); err != nil {
				if ctx.Err() != nil {
					continue // cancellation raced the tick; exit via ctx.Done
				}
				return fmt.Errorf("actuator write failed: %w", err)
			}
		}
	}
}
