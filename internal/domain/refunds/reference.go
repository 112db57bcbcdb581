package refunds

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/speps/go-hashids/v2"
)

// ReferenceGenerator mints the refund transaction reference recorded when
// the provider payout response carries no id of its own. References are
// short, unambiguous (no 0/O/1/I) and safe to read out over the phone.
type ReferenceGenerator struct {
	h *hashids.HashID
}

func NewReferenceGenerator(salt string) (*ReferenceGenerator, error) {
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = 10
	data.Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, fmt.Errorf("refund reference generator: %w", err)
	}
	return &ReferenceGenerator{h: h}, nil
}

func (g *ReferenceGenerator) Generate() string {
	seq := int(time.Now().UnixMilli() & 0x7fffffff)
	nonce := int(uuid.New().ID() & 0x7fffffff)

	tag, err := g.h.Encode([]int{seq, nonce})
	if err != nil {
		// Encode only fails on negative inputs, which the masks above rule
		// out; keep a fallback anyway so a refund is never blocked on this.
		tag = strings.ToUpper(uuid.NewString()[:8])
	}
	return "RF-" + tag
}
