package codec

import "io"

// countingWriter sits below any compressor so Length() reflects the
// on-disk byte count (post-compression), matching spec.md §4.4: "length()
// returns the on-disk byte count — required for size-based commit
// policy".
type countingWriter struct {
	underlying io.Writer
	written    int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.underlying.Write(p)
	c.written += int64(n)
	return n, err
}
