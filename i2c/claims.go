package i2c

import (
	"fmt"
	"sync"

	"github.com/mklimuk/tempmon"
)

type claim struct {
	controller tempmon.ControllerID
	address    byte
}

// claims tracks the slave addresses opened through one provider. Linux
// i2c-dev does not lock an address for RDWR transfers, so exclusivity within
// the process is enforced here.
type claims struct {
	mx    sync.Mutex
	taken map[claim]struct{}
}

func (c *claims) acquire(controller tempmon.ControllerID, address byte) (func(), error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.taken == nil {
		c.taken = make(map[claim]struct{})
	}
	key := claim{controller: controller, address: address}
	if _, ok := c.taken[key]; ok {
		return nil, fmt.Errorf("%s@%#x: %w", controller, address, tempmon.ErrAddressInUse)
	}
	c.taken[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mx.Lock()
			defer c.mx.Unlock()
			delete(c.taken, key)
		})
	}, nil
}
