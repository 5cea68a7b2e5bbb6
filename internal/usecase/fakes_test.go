package usecase_test

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"

	"shop/internal/domain/model"
	"shop/internal/infra/momo"
	"shop/internal/metrics"
	repo "shop/internal/repository"
	"shop/internal/usecase"
	"shop/internal/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
)

// =====================
// in-memory unit of work
// =====================

type memState struct {
	products   map[int64]model.Product
	orders     map[int64]model.Order
	items      map[int64][]model.OrderItem
	nextOrder  int64
	nextItem   int64
	failUpdate error
	// order ids read with FindByIDForUpdate, in call order
	locked []int64
}

func (s *memState) clone() *memState {
	c := &memState{
		products:   make(map[int64]model.Product, len(s.products)),
		orders:     make(map[int64]model.Order, len(s.orders)),
		items:      make(map[int64][]model.OrderItem, len(s.items)),
		nextOrder:  s.nextOrder,
		nextItem:   s.nextItem,
		failUpdate: s.failUpdate,
		locked:     append([]int64(nil), s.locked...),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]model.OrderItem(nil), v...)
	}
	return c
}

// memStore serializes transactions and restores the snapshot when fn fails.
type memStore struct {
	mu    sync.Mutex
	state *memState
}

func newMemStore(products ...model.Product) *memStore {
	s := &memStore{state: &memState{
		products: map[int64]model.Product{},
		orders:   map[int64]model.Order{},
		items:    map[int64][]model.OrderItem{},
	}}
	for _, p := range products {
		p.IsActive = true
		s.state.products[p.ID] = p
	}
	return s
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
		if err != nil {
			s.state = snapshot
		}
	}()
	return fn(memRepos{st: s.state})
}

func (s *memStore) stock(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.products[id].Stock
}

func (s *memStore) setPrice(id int64, price model.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.products[id]
	p.Price = price
	s.state.products[id] = p
}

func (s *memStore) deactivate(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.products[id]
	p.IsActive = false
	s.state.products[id] = p
}

func (s *memStore) order(id int64) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.orders[id]
	return o, ok
}

func (s *memStore) lockedOrders() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.state.locked...)
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

type memRepos struct{ st *memState }

func (r memRepos) Orders() repo.OrderRepository         { return memOrders{r.st} }
func (r memRepos) OrderItems() repo.OrderItemRepository { return memItems{r.st} }
func (r memRepos) Inventory() repo.InventoryRepository  { return memInventory{r.st} }
func (r memRepos) Products() repo.ProductRepository     { return memProducts{r.st} }

type memOrders struct{ st *memState }

func (m memOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	o, ok := m.st.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

// transactions are already serialized by memStore; only the call is recorded
func (m memOrders) FindByIDForUpdate(ctx context.Context, id int64) (model.Order, error) {
	m.st.locked = append(m.st.locked, id)
	return m.FindByID(ctx, id)
}

func (m memOrders) List(ctx context.Context) ([]model.Order, error) {
	out := make([]model.Order, 0, len(m.st.orders))
	for _, o := range m.st.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m memOrders) Create(ctx context.Context, o model.Order) (int64, error) {
	m.st.nextOrder++
	o.ID = m.st.nextOrder
	o.Items = nil
	m.st.orders[o.ID] = o
	return o.ID, nil
}

func (m memOrders) Update(ctx context.Context, o model.Order) error {
	if m.st.failUpdate != nil {
		return m.st.failUpdate
	}
	cur, ok := m.st.orders[o.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.CustomerName = o.CustomerName
	cur.CustomerPhone = o.CustomerPhone
	cur.CustomerAddress = o.CustomerAddress
	cur.CustomerEmail = o.CustomerEmail
	cur.TotalAmount = o.TotalAmount
	m.st.orders[o.ID] = cur
	return nil
}

func (m memOrders) UpdateStatusIf(ctx context.Context, id int64, from, to model.OrderStatus) (bool, error) {
	cur, ok := m.st.orders[id]
	if !ok || cur.Status != from {
		return false, nil
	}
	cur.Status = to
	m.st.orders[id] = cur
	return true, nil
}

func (m memOrders) SetPaymentURL(ctx context.Context, id int64, url string) error {
	cur, ok := m.st.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	cur.PaymentURL = &url
	m.st.orders[id] = cur
	return nil
}

func (m memOrders) Delete(ctx context.Context, id int64) error {
	if _, ok := m.st.orders[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.st.orders, id)
	return nil
}

type memItems struct{ st *memState }

func (m memItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for _, it := range items {
		m.st.nextItem++
		it.ID = m.st.nextItem
		it.OrderID = orderID
		it.Product = nil
		m.st.items[orderID] = append(m.st.items[orderID], it)
	}
	return nil
}

func (m memItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	out := make([]model.OrderItem, 0, len(m.st.items[orderID]))
	for _, it := range m.st.items[orderID] {
		if p, ok := m.st.products[it.ProductID]; ok {
			p := p
			it.Product = &p
		}
		out = append(out, it)
	}
	return out, nil
}

func (m memItems) DeleteByOrderID(ctx context.Context, orderID int64) error {
	delete(m.st.items, orderID)
	return nil
}

type memInventory struct{ st *memState }

func (m memInventory) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	p, ok := m.st.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	m.st.products[productID] = p
	return true, nil
}

func (m memInventory) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	p, ok := m.st.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock += qty
	m.st.products[productID] = p
	return nil
}

type memProducts struct{ st *memState }

func (m memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := m.st.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

// =====================
// settlement log
// =====================

type memTxLog struct {
	mu   sync.Mutex
	rows []model.PaymentTransaction
	err  error
}

func (l *memTxLog) Create(ctx context.Context, tx model.PaymentTransaction) (model.PaymentTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return model.PaymentTransaction{}, l.err
	}
	tx.ID = int64(len(l.rows) + 1)
	l.rows = append(l.rows, tx)
	return tx, nil
}

func (l *memTxLog) FindResolvedByProviderOrderID(ctx context.Context, providerOrderID string) (model.PaymentTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows {
		if r.ProviderOrderID == providerOrderID && r.OrderRefID != nil {
			return r, nil
		}
	}
	return model.PaymentTransaction{}, repo.ErrNotFound
}

func (l *memTxLog) FindRequestByProviderOrderID(ctx context.Context, providerOrderID string) (model.PaymentTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows {
		if r.ProviderOrderID == providerOrderID && r.Kind == model.PaymentTransactionRequest {
			return r, nil
		}
	}
	return model.PaymentTransaction{}, repo.ErrNotFound
}

func (l *memTxLog) ListByOrderRef(ctx context.Context, orderID int64) ([]model.PaymentTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.PaymentTransaction
	for _, r := range l.rows {
		if r.OrderRefID != nil && *r.OrderRefID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *memTxLog) all() []model.PaymentTransaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.PaymentTransaction(nil), l.rows...)
}

func (l *memTxLog) byKind(kind model.PaymentTransactionKind) []model.PaymentTransaction {
	var out []model.PaymentTransaction
	for _, r := range l.all() {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// =====================
// collaborator mocks
// =====================

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) SendInvoice(ctx context.Context, order model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

type ProviderMock struct {
	mock.Mock
	configured bool
	seq        int
}

func (m *ProviderMock) Name() string     { return momo.ProviderName }
func (m *ProviderMock) Configured() bool { return m.configured }

func (m *ProviderMock) NewProviderOrderID() string {
	m.seq++
	return "MOMOTEST" + strconv.Itoa(m.seq)
}

func (m *ProviderMock) CreatePayment(ctx context.Context, req momo.PaymentRequest) (momo.PaymentResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(momo.PaymentResponse)
	return resp, args.Error(1)
}

func (m *ProviderMock) VerifyCallback(cb momo.Callback) bool {
	args := m.Called(cb)
	return args.Bool(0)
}

var errBoom = errors.New("boom")

// =====================
// fixture
// =====================

type fixture struct {
	store      *memStore
	txlog      *memTxLog
	provider   *ProviderMock
	notifier   *NotifierMock
	orders     *usecase.OrderUsecase
	reconciler *usecase.CallbackReconciler
	logs       *test.Hook
}

func newFixture(t *testing.T, products ...model.Product) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	entry := logger.WithField("component", "test")

	f := &fixture{
		store:    newMemStore(products...),
		txlog:    &memTxLog{},
		provider: &ProviderMock{configured: true},
		notifier: &NotifierMock{},
		logs:     hook,
	}
	m := metrics.NewOrderMetrics(prometheus.NewRegistry())
	gateway := usecase.NewPaymentGateway(f.provider, f.txlog, m, entry)
	f.orders = usecase.NewOrderUsecase(f.store, f.txlog, gateway, f.notifier, validator.NewOrderValidator(1000), m, entry)
	f.reconciler = usecase.NewCallbackReconciler(f.provider, f.txlog, f.store, f.notifier, m, entry)
	return f
}

func (f *fixture) expectInvoice() {
	f.notifier.On("SendInvoice", mock.Anything, mock.AnythingOfType("model.Order")).Return(nil)
}

func (f *fixture) expectPayURL(url string) {
	f.provider.On("CreatePayment", mock.Anything, mock.AnythingOfType("momo.PaymentRequest")).
		Return(momo.PaymentResponse{ResultCode: 0, PayURL: url}, nil)
}

func placeInput(method model.PaymentMethod, items ...usecase.ItemInput) usecase.PlaceOrderInput {
	return usecase.PlaceOrderInput{
		CustomerName:    "Nguyen An",
		CustomerPhone:   "0900000000",
		CustomerAddress: "12 Le Loi",
		CustomerEmail:   "an@example.com",
		PaymentMethod:   method,
		Items:           items,
		TotalAmount:     100000,
	}
}

func item(productID, qty int64) usecase.ItemInput {
	return usecase.ItemInput{ProductID: productID, Quantity: qty}
}
