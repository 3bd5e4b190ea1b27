package rate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/MrEthical07/goSession/store"
)

// DefaultBlockTTL is applied when Block is called with a non-positive ttl.
const DefaultBlockTTL = time.Hour

// ErrInvalidIP is returned for block list operations on an unparsable address.
var ErrInvalidIP = errors.New("invalid ip address")

// Blocklist stores temporarily blocked client addresses.
type Blocklist struct {
	kv store.KV
}

// NewBlocklist creates a block list over kv.
func NewBlocklist(kv store.KV) *Blocklist {
	return &Blocklist{kv: kv}
}

func blockedKey(ip string) string {
	return "blocked:" + ip
}

func normalizeIP(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	return parsed.String(), nil
}

// Block denies ip for ttl.
func (b *Blocklist) Block(ctx context.Context, ip string, ttl time.Duration) error {
	addr, err := normalizeIP(ip)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultBlockTTL
	}
	if err := b.kv.SetTTL(ctx, blockedKey(addr), "blocked", ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Unblock removes ip from the list. Unknown addresses are not an error.
func (b *Blocklist) Unblock(ctx context.Context, ip string) error {
	addr, err := normalizeIP(ip)
	if err != nil {
		return err
	}
	if _, err := b.kv.Delete(ctx, blockedKey(addr)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsBlocked reports whether ip is currently blocked. Store failures are
// returned to the caller, which treats them as blocked.
func (b *Blocklist) IsBlocked(ctx context.Context, ip string) (bool, error) {
	addr, err := normalizeIP(ip)
	if err != nil {
		// Unparsable client addresses cannot have been blocked.
		return false, nil
	}
	_, err = b.kv.Get(ctx, blockedKey(addr))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return true, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
