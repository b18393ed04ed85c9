package schemas

import (
	"context"
)

// -- Driver Interface --

// Driver is the UI automation surface the runner acts through. Every selector
// is an XPath expression.
type Driver interface {
	// Navigate loads url in the current tab.
	Navigate(ctx context.Context, url string) error
	// Click clicks the first node matching xpath.
	Click(ctx context.Context, xpath string) error
	// Type sends text to the first node matching xpath.
	Type(ctx context.Context, xpath, text string) error
	// Clear empties the input matched by xpath.
	Clear(ctx context.Context, xpath string) error
	// Count returns how many nodes currently match xpath.
	Count(ctx context.Context, xpath string) (int, error)
	// Texts returns the rendered text of every node matching xpath, in document order.
	Texts(ctx context.Context, xpath string) ([]string, error)
	ScrollIntoView(ctx context.Context, xpath string) error
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Reload(ctx context.Context) error
	Back(ctx context.Context) error
	Close() error
}
