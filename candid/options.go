package candid

const (
	// DefaultMaxVecLen bounds vector lengths accepted by the codec.
	DefaultMaxVecLen = 1 << 24

	// DefaultMaxDepth bounds value nesting.
	DefaultMaxDepth = 256

	// DefaultMaxIntLen bounds the encoded length of a nat or int in bytes.
	DefaultMaxIntLen = 1 << 10

	// DefaultDecodingQuota bounds the number of values materialized while
	// decoding one message.
	DefaultDecodingQuota = 1 << 20
)

type options struct {
	maxVecLen    uint64
	maxDepth     int
	maxIntLen    int
	quota        uint64
	validateUTF8 bool
}

func defaultOptions() options {
	return options{
		maxVecLen: DefaultMaxVecLen,
		maxDepth:  DefaultMaxDepth,
		maxIntLen: DefaultMaxIntLen,
		quota:     DefaultDecodingQuota,
	}
}

// Option configures an Encoder or Decoder.
type Option func(*options)

// WithMaxVecLen limits the number of elements in any vector.
func WithMaxVecLen(n uint64) Option {
	return func(o *options) {
		o.maxVecLen = n
	}
}

// WithMaxDepth limits how deeply values may nest.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithMaxIntLen limits the encoded size of a nat or int.
func WithMaxIntLen(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIntLen = n
		}
	}
}

// WithDecodingQuota limits how many values a Decoder may materialize
// across the whole message, counting zero-sized ones such as null. Zero
// disables the limit. Encoders ignore it.
func WithDecodingQuota(n uint64) Option {
	return func(o *options) {
		o.quota = n
	}
}

// WithUTF8Validation rejects text that is not valid UTF-8.
func WithUTF8Validation() Option {
	return func(o *options) {
		o.validateUTF8 = true
	}
}
