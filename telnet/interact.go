package telnet

import (
	"bufio"
	"context"
	"io"
	"time"
)

const maxIdleBackoffSteps = 10

// Interact bridges a line-buffered input source to the connection and
// streams received bytes to sink until ctx is canceled. The reader runs
// as a background goroutine with adaptive backoff: a contiguous idle
// read counter n, clamped at 10, sleeping 0.05*n seconds after each
// empty read. The goroutine's lifetime is strictly bounded by ctx.
func (c *Client) Interact(ctx context.Context, in io.Reader, sink io.Writer) error {
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		idle := 0
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			chunk, err := c.Read(ctx, 4096, 200*time.Millisecond)
			if len(chunk) > 0 {
				idle = 0
				if _, werr := sink.Write(chunk); werr != nil {
					return
				}
				continue
			}
			if err != nil && ctx.Err() != nil {
				return
			}

			if idle < maxIdleBackoffSteps {
				idle++
			}
			backoff := time.Duration(float64(50*time.Millisecond) * float64(idle))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
		}
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			<-readerDone
			return nil
		default:
		}
		if err := c.SendCommand(scanner.Text(), "\r\n"); err != nil {
			<-readerDone
			return err
		}
	}

	<-readerDone
	return nil
}
