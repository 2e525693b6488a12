package storage

import (
	"bytes"
	"errors"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/Tilt-github/aave-v4-sub006/native/hub"
	"github.com/Tilt-github/aave-v4-sub006/native/positions"
	"github.com/Tilt-github/aave-v4-sub006/native/spoke"
)

var (
	assetPrefix     = []byte("hub/asset/")
	subPrefix       = []byte("hub/sub/")
	spokeIndexKey   = []byte("hub/spokes/")
	reservePrefix   = []byte("risk/reserve/")
	reserveCountKey = []byte("risk/reserves")
	positionPrefix  = []byte("risk/position/")
	statusPrefix    = []byte("risk/status/")
)

// HubStore persists asset-ledger state in the underlying key-value store.
type HubStore struct {
	db Database
}

var _ hub.State = (*HubStore)(nil)

// NewHubStore constructs a store bound to the provided database.
func NewHubStore(db Database) *HubStore {
	return &HubStore{db: db}
}

type storedPremium struct {
	GhostShares *big.Int
	Offset      *big.Int
	Realized    *big.Int
}

func toStoredPremium(p hub.Premium) storedPremium {
	return storedPremium{
		GhostShares: intOrZero(p.GhostShares),
		Offset:      intOrZero(p.Offset),
		Realized:    intOrZero(p.Realized),
	}
}

func (s storedPremium) premium() hub.Premium {
	return hub.Premium{
		GhostShares: s.GhostShares,
		Offset:      s.Offset,
		Realized:    s.Realized,
	}
}

type storedAsset struct {
	Underlying  [16]byte
	Liquidity   *big.Int
	AddedShares *big.Int
	DrawnShares *big.Int
	DrawnIndex  *big.Int
	DrawnRate   *big.Int
	Premium     storedPremium
	Deficit     *big.Int
	Swept       *big.Int
	FeeRateBps  uint64
	FeeReceiver [16]byte
	Controller  [16]byte
	LastUpdate  uint64
	Decimals    uint8
	Active      bool
}

type storedSubledger struct {
	AddedShares *big.Int
	DrawnShares *big.Int
	Premium     storedPremium
	Deficit     *big.Int
	AddCap      uint64
	DrawCap     uint64
	Active      bool
}

func (s *HubStore) GetAsset(id hub.AssetID) (*hub.Asset, error) {
	raw, err := s.db.Get(assetKey(id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedAsset
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	return &hub.Asset{
		Underlying:  uuid.UUID(stored.Underlying),
		Liquidity:   stored.Liquidity,
		AddedShares: stored.AddedShares,
		DrawnShares: stored.DrawnShares,
		DrawnIndex:  stored.DrawnIndex,
		DrawnRate:   stored.DrawnRate,
		Premium:     stored.Premium.premium(),
		Deficit:     stored.Deficit,
		Swept:       stored.Swept,
		FeeRateBps:  stored.FeeRateBps,
		FeeReceiver: uuid.UUID(stored.FeeReceiver),
		Controller:  uuid.UUID(stored.Controller),
		LastUpdate:  int64(stored.LastUpdate),
		Decimals:    stored.Decimals,
		Active:      stored.Active,
	}, nil
}

func (s *HubStore) PutAsset(id hub.AssetID, asset *hub.Asset) error {
	stored := storedAsset{
		Underlying:  [16]byte(asset.Underlying),
		Liquidity:   intOrZero(asset.Liquidity),
		AddedShares: intOrZero(asset.AddedShares),
		DrawnShares: intOrZero(asset.DrawnShares),
		DrawnIndex:  intOrZero(asset.DrawnIndex),
		DrawnRate:   intOrZero(asset.DrawnRate),
		Premium:     toStoredPremium(asset.Premium),
		Deficit:     intOrZero(asset.Deficit),
		Swept:       intOrZero(asset.Swept),
		FeeRateBps:  asset.FeeRateBps,
		FeeReceiver: [16]byte(asset.FeeReceiver),
		Controller:  [16]byte(asset.Controller),
		LastUpdate:  uint64(asset.LastUpdate),
		Decimals:    asset.Decimals,
		Active:      asset.Active,
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return s.db.Put(assetKey(id), raw)
}

func (s *HubStore) GetSubledger(id hub.AssetID, spokeID uuid.UUID) (*hub.SpokeSubledger, error) {
	raw, err := s.db.Get(subKey(id, spokeID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedSubledger
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	return &hub.SpokeSubledger{
		AddedShares: stored.AddedShares,
		DrawnShares: stored.DrawnShares,
		Premium:     stored.Premium.premium(),
		Deficit:     stored.Deficit,
		AddCap:      stored.AddCap,
		DrawCap:     stored.DrawCap,
		Active:      stored.Active,
	}, nil
}

func (s *HubStore) PutSubledger(id hub.AssetID, spokeID uuid.UUID, sub *hub.SpokeSubledger) error {
	stored := storedSubledger{
		AddedShares: intOrZero(sub.AddedShares),
		DrawnShares: intOrZero(sub.DrawnShares),
		Premium:     toStoredPremium(sub.Premium),
		Deficit:     intOrZero(sub.Deficit),
		AddCap:      sub.AddCap,
		DrawCap:     sub.DrawCap,
		Active:      sub.Active,
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	if err := s.db.Put(subKey(id, spokeID), raw); err != nil {
		return err
	}
	return s.indexSpoke(id, spokeID)
}

// Subledgers lists every spoke registered for the asset, in stable order.
func (s *HubStore) Subledgers(id hub.AssetID) ([]uuid.UUID, error) {
	stored, err := s.spokeIndex(id)
	if err != nil {
		return nil, err
	}
	spokes := make([]uuid.UUID, len(stored))
	for i, raw := range stored {
		spokes[i] = uuid.UUID(raw)
	}
	return spokes, nil
}

func (s *HubStore) spokeIndex(id hub.AssetID) ([][16]byte, error) {
	raw, err := s.db.Get(appendUint16(spokeIndexKey, uint16(id)))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored [][16]byte
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// indexSpoke keeps the per-asset spoke listing sorted and duplicate-free.
func (s *HubStore) indexSpoke(id hub.AssetID, spokeID uuid.UUID) error {
	stored, err := s.spokeIndex(id)
	if err != nil {
		return err
	}
	for _, existing := range stored {
		if uuid.UUID(existing) == spokeID {
			return nil
		}
	}
	stored = append(stored, [16]byte(spokeID))
	sort.Slice(stored, func(a, b int) bool {
		return bytes.Compare(stored[a][:], stored[b][:]) < 0
	})
	raw, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return s.db.Put(appendUint16(spokeIndexKey, uint16(id)), raw)
}

// RiskStore persists risk-engine state in the underlying key-value store.
type RiskStore struct {
	db Database
}

var _ spoke.State = (*RiskStore)(nil)

// NewRiskStore constructs a store bound to the provided database.
func NewRiskStore(db Database) *RiskStore {
	return &RiskStore{db: db}
}

type storedReserveConfig struct {
	Key                    uint16
	CollateralFactorBps    uint64
	MaxLiquidationBonusBps uint64
	LiquidationFeeBps      uint64
}

type storedReserve struct {
	Asset       uint16
	Decimals    uint8
	RiskTierBps uint64
	Paused      bool
	Frozen      bool
	Borrowable  bool
	ConfigKey   uint16
	Configs     []storedReserveConfig
}

type storedPosition struct {
	AddedShares *big.Int
	DrawnShares *big.Int
	Premium     storedPremium
	ConfigKey   uint16
}

func (s *RiskStore) GetReserve(id spoke.ReserveID) (*spoke.Reserve, error) {
	raw, err := s.db.Get(reserveKey(id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedReserve
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	reserve := &spoke.Reserve{
		Asset:       hub.AssetID(stored.Asset),
		Decimals:    stored.Decimals,
		RiskTierBps: stored.RiskTierBps,
		Paused:      stored.Paused,
		Frozen:      stored.Frozen,
		Borrowable:  stored.Borrowable,
		ConfigKey:   stored.ConfigKey,
		Configs:     make(map[uint16]spoke.DynamicReserveConfig, len(stored.Configs)),
	}
	for _, cfg := range stored.Configs {
		reserve.Configs[cfg.Key] = spoke.DynamicReserveConfig{
			CollateralFactorBps:    cfg.CollateralFactorBps,
			MaxLiquidationBonusBps: cfg.MaxLiquidationBonusBps,
			LiquidationFeeBps:      cfg.LiquidationFeeBps,
		}
	}
	return reserve, nil
}

func (s *RiskStore) PutReserve(id spoke.ReserveID, reserve *spoke.Reserve) error {
	stored := storedReserve{
		Asset:       uint16(reserve.Asset),
		Decimals:    reserve.Decimals,
		RiskTierBps: reserve.RiskTierBps,
		Paused:      reserve.Paused,
		Frozen:      reserve.Frozen,
		Borrowable:  reserve.Borrowable,
		ConfigKey:   reserve.ConfigKey,
		Configs:     make([]storedReserveConfig, 0, len(reserve.Configs)),
	}
	for key, cfg := range reserve.Configs {
		stored.Configs = append(stored.Configs, storedReserveConfig{
			Key:                    key,
			CollateralFactorBps:    cfg.CollateralFactorBps,
			MaxLiquidationBonusBps: cfg.MaxLiquidationBonusBps,
			LiquidationFeeBps:      cfg.LiquidationFeeBps,
		})
	}
	sort.Slice(stored.Configs, func(a, b int) bool {
		return stored.Configs[a].Key < stored.Configs[b].Key
	})
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return s.db.Put(reserveKey(id), raw)
}

func (s *RiskStore) ReserveCount() (uint16, error) {
	raw, err := s.db.Get(reserveCountKey)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count uint16
	if err := rlp.DecodeBytes(raw, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *RiskStore) SetReserveCount(count uint16) error {
	raw, err := rlp.EncodeToBytes(count)
	if err != nil {
		return err
	}
	return s.db.Put(reserveCountKey, raw)
}

func (s *RiskStore) GetPosition(user uuid.UUID, id spoke.ReserveID) (*spoke.UserPosition, error) {
	raw, err := s.db.Get(positionKey(user, id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	return &spoke.UserPosition{
		AddedShares: stored.AddedShares,
		DrawnShares: stored.DrawnShares,
		Premium:     stored.Premium.premium(),
		ConfigKey:   stored.ConfigKey,
	}, nil
}

func (s *RiskStore) PutPosition(user uuid.UUID, id spoke.ReserveID, pos *spoke.UserPosition) error {
	stored := storedPosition{
		AddedShares: intOrZero(pos.AddedShares),
		DrawnShares: intOrZero(pos.DrawnShares),
		Premium:     toStoredPremium(pos.Premium),
		ConfigKey:   pos.ConfigKey,
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return s.db.Put(positionKey(user, id), raw)
}

func (s *RiskStore) GetStatus(user uuid.UUID) (*positions.Map, error) {
	raw, err := s.db.Get(statusKey(user))
	if errors.Is(err, ErrNotFound) {
		return &positions.Map{}, nil
	}
	if err != nil {
		return nil, err
	}
	var stored [][]byte
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	words := make([]uint256.Int, len(stored))
	for i, word := range stored {
		if len(word) > 32 {
			return nil, errors.New("storage: position word exceeds 32 bytes")
		}
		words[i].SetBytes(word)
	}
	return positions.FromWords(words), nil
}

func (s *RiskStore) PutStatus(user uuid.UUID, status *positions.Map) error {
	words := status.Words()
	stored := make([][]byte, len(words))
	for i := range words {
		stored[i] = words[i].Bytes()
	}
	raw, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return s.db.Put(statusKey(user), raw)
}

func assetKey(id hub.AssetID) []byte {
	return appendUint16(assetPrefix, uint16(id))
}

func subKey(id hub.AssetID, spokeID uuid.UUID) []byte {
	key := appendUint16(subPrefix, uint16(id))
	key = append(key, '/')
	return append(key, spokeID[:]...)
}

func reserveKey(id spoke.ReserveID) []byte {
	return appendUint16(reservePrefix, uint16(id))
}

func positionKey(user uuid.UUID, id spoke.ReserveID) []byte {
	key := append(append([]byte(nil), positionPrefix...), user[:]...)
	key = append(key, '/')
	return appendUint16(key, uint16(id))
}

func statusKey(user uuid.UUID) []byte {
	return append(append([]byte(nil), statusPrefix...), user[:]...)
}

func appendUint16(prefix []byte, v uint16) []byte {
	key := append([]byte(nil), prefix...)
	return append(key, byte(v>>8), byte(v))
}

func intOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
