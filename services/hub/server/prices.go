package server

import (
	"errors"
	"math/big"
	"sync"

	"github.com/Tilt-github/aave-v4-sub006/native/spoke"
)

// ErrPriceUnset is returned when a reserve has no posted price.
var ErrPriceUnset = errors.New("server: no price posted for reserve")

// StaticPrices is a mutable in-memory price source. Prices are Wad-scaled
// base-currency values per whole token and are posted through the admin
// endpoint.
type StaticPrices struct {
	mu     sync.RWMutex
	prices map[spoke.ReserveID]*big.Int
}

// NewStaticPrices returns an empty price source.
func NewStaticPrices() *StaticPrices {
	return &StaticPrices{prices: make(map[spoke.ReserveID]*big.Int)}
}

// SetPrice posts the Wad price for a reserve.
func (p *StaticPrices) SetPrice(id spoke.ReserveID, price *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[id] = new(big.Int).Set(price)
}

// GetPrice implements spoke.PriceSource.
func (p *StaticPrices) GetPrice(id spoke.ReserveID) (*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.prices[id]
	if !ok {
		return nil, ErrPriceUnset
	}
	return new(big.Int).Set(price), nil
}
