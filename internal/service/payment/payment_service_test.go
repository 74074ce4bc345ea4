package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/models"
	"github.com/tdnguyen-dev/evswap-station/internal/repository"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
	"github.com/tdnguyen-dev/evswap-station/pkg/vnpay"
)

type testEnv struct {
	svc         *PaymentService
	paymentRepo *repository.PaymentRepository
	vnpay       *vnpay.Client
	markPaid    *int
}

func newTestEnv(t *testing.T, mux *http.ServeMux) *testEnv {
	t.Helper()

	markPaid := 0
	mux.HandleFunc("/api/v1/swaps/swap-1/mark-paid", func(w http.ResponseWriter, r *http.Request) {
		markPaid++
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	core := coreapi.New(&coreapi.Config{BaseURL: server.URL, Timeout: 5 * time.Second}, zap.NewNop())

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Payment{}, &models.OperationLog{}))

	vnpayClient := vnpay.NewClient(&vnpay.Config{
		TmnCode:    "TESTTMN1",
		HashSecret: "secret-key",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  server.URL + "/return",
	})

	paymentRepo := repository.NewPaymentRepository(db)
	svc := NewPaymentService(db, paymentRepo, repository.NewOperationLogRepository(db), core, vnpayClient)

	return &testEnv{svc: svc, paymentRepo: paymentRepo, vnpay: vnpayClient, markPaid: &markPaid}
}

func swapFixture(status int, isPaid bool, total int64) coreapi.SwapTransaction {
	return coreapi.SwapTransaction{
		ID:                "swap-1",
		TransactionNumber: "SWP-001",
		StationID:         "st-1",
		Status:            status,
		IsPaid:            isPaid,
		SwapFee:           total,
		TotalAmount:       total,
		StartedAt:         time.Now(),
	}
}

func swapMux(t *testing.T, tx coreapi.SwapTransaction) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/swaps/swap-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tx)
	})
	return mux
}

func TestCreateVNPayPayment(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))

	result, err := env.svc.CreateVNPayPayment(context.Background(), 7, "203.0.113.9", &CreateVNPayRequest{SwapID: "swap-1"})
	require.NoError(t, err)

	assert.Equal(t, "swap-1", result.Payment.SwapID)
	assert.Equal(t, int64(50000), result.Payment.Amount)
	assert.Equal(t, int8(models.PaymentStatusPending), result.Payment.Status)
	assert.Contains(t, result.PayURL, "vnp_SecureHash=")
	assert.Contains(t, result.PayURL, "vnp_Amount=5000000")

	stored, err := env.paymentRepo.GetBySwapID(context.Background(), "swap-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentChannelVNPay, stored.Channel)
	require.NotNil(t, stored.VnpTxnRef)
}

func TestCreateVNPayPaymentRejectsPaidSwap(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, true, 50000)))

	_, err := env.svc.CreateVNPayPayment(context.Background(), 7, "203.0.113.9", &CreateVNPayRequest{SwapID: "swap-1"})
	assert.True(t, errors.Is(err, errors.ErrPaymentDuplicate))
}

func TestCreateVNPayPaymentRejectsEarlyStatus(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryIssued, false, 50000)))

	_, err := env.svc.CreateVNPayPayment(context.Background(), 7, "203.0.113.9", &CreateVNPayRequest{SwapID: "swap-1"})
	assert.True(t, errors.Is(err, errors.ErrSwapStatusError))
}

func TestCreateVNPayPaymentRejectsCancelledSwap(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusCancelled, false, 50000)))

	_, err := env.svc.CreateVNPayPayment(context.Background(), 7, "203.0.113.9", &CreateVNPayRequest{SwapID: "swap-1"})
	assert.True(t, errors.Is(err, errors.ErrSwapStatusError))
}

func TestCreateVNPayPaymentRejectsZeroAmount(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 0)))

	_, err := env.svc.CreateVNPayPayment(context.Background(), 7, "203.0.113.9", &CreateVNPayRequest{SwapID: "swap-1"})
	assert.True(t, errors.Is(err, errors.ErrPaymentAmountError))
}

func TestCreateVNPayPaymentRejectsLivePayment(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))

	_, err := env.svc.CreateVNPayPayment(context.Background(), 7, "203.0.113.9", &CreateVNPayRequest{SwapID: "swap-1"})
	require.NoError(t, err)

	_, err = env.svc.CreateVNPayPayment(context.Background(), 7, "203.0.113.9", &CreateVNPayRequest{SwapID: "swap-1"})
	assert.True(t, errors.Is(err, errors.ErrPaymentDuplicate))
}

func TestCreateVNPayPaymentAllowsRetryAfterFailure(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))
	ctx := context.Background()

	result, err := env.svc.CreateVNPayPayment(ctx, 7, "203.0.113.9", &CreateVNPayRequest{SwapID: "swap-1"})
	require.NoError(t, err)

	// fail the first attempt, then a second attempt must be accepted
	stored, err := env.paymentRepo.GetBySwapID(ctx, "swap-1")
	require.NoError(t, err)
	stored.Status = models.PaymentStatusFailed
	require.NoError(t, env.paymentRepo.Update(ctx, stored))
	_ = result

	_, err = env.svc.CreateVNPayPayment(ctx, 7, "203.0.113.9", &CreateVNPayRequest{SwapID: "swap-1"})
	assert.NoError(t, err)
}

// signedQuery builds a callback query signed the way the gateway signs it,
// sorted keys over an HMAC-SHA512 of the test secret.
func signedQuery(env *testEnv, txnRef string, amount int64, responseCode string) url.Values {
	values := url.Values{}
	values.Set("vnp_TxnRef", txnRef)
	values.Set("vnp_Amount", fmt.Sprintf("%d", amount*100))
	values.Set("vnp_ResponseCode", responseCode)
	values.Set("vnp_TransactionNo", "14226112")
	values.Set("vnp_BankCode", "NCB")
	values.Set("vnp_PayDate", "20260826103512")

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var builder strings.Builder
	for i, key := range keys {
		if i > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(url.QueryEscape(key))
		builder.WriteByte('=')
		builder.WriteString(url.QueryEscape(values.Get(key)))
	}
	mac := hmac.New(sha512.New, []byte("secret-key"))
	mac.Write([]byte(builder.String()))
	values.Set("vnp_SecureHash", hex.EncodeToString(mac.Sum(nil)))
	return values
}

func createPendingPayment(t *testing.T, env *testEnv) string {
	t.Helper()
	result, err := env.svc.CreateVNPayPayment(context.Background(), 7, "203.0.113.9", &CreateVNPayRequest{SwapID: "swap-1"})
	require.NoError(t, err)

	stored, err := env.paymentRepo.GetBySwapID(context.Background(), "swap-1")
	require.NoError(t, err)
	require.NotNil(t, stored.VnpTxnRef)
	_ = result
	return *stored.VnpTxnRef
}

func TestHandleCallbackRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))
	txnRef := createPendingPayment(t, env)

	query := signedQuery(env, txnRef, 50000, "00")
	query.Set("vnp_Amount", "100") // tamper after signing

	_, err := env.svc.HandleCallback(context.Background(), query)
	assert.True(t, errors.Is(err, errors.ErrPaymentSignInvalid))
}

func TestHandleCallbackMarksPaid(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))
	txnRef := createPendingPayment(t, env)

	result, err := env.svc.HandleCallback(context.Background(), signedQuery(env, txnRef, 50000, "00"))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "swap-1", result.SwapID)

	stored, err := env.paymentRepo.GetBySwapID(context.Background(), "swap-1")
	require.NoError(t, err)
	assert.Equal(t, int8(models.PaymentStatusPaid), stored.Status)
	assert.NotNil(t, stored.PaidAt)
	assert.Equal(t, 1, *env.markPaid)
}

func TestHandleCallbackIdempotentReplay(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))
	txnRef := createPendingPayment(t, env)

	query := signedQuery(env, txnRef, 50000, "00")
	_, err := env.svc.HandleCallback(context.Background(), query)
	require.NoError(t, err)

	// replay must acknowledge without touching state again
	result, err := env.svc.HandleCallback(context.Background(), query)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, *env.markPaid)
}

func TestHandleCallbackAmountMismatch(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))
	txnRef := createPendingPayment(t, env)

	_, err := env.svc.HandleCallback(context.Background(), signedQuery(env, txnRef, 40000, "00"))
	assert.True(t, errors.Is(err, errors.ErrPaymentAmountError))

	// the payment stays pending, the mismatch is not a settlement
	stored, err := env.paymentRepo.GetBySwapID(context.Background(), "swap-1")
	require.NoError(t, err)
	assert.Equal(t, int8(models.PaymentStatusPending), stored.Status)
}

func TestHandleCallbackRecordsFailure(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))
	txnRef := createPendingPayment(t, env)

	result, err := env.svc.HandleCallback(context.Background(), signedQuery(env, txnRef, 50000, "24"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0, *env.markPaid)

	// failed payment no longer blocks GetBySwapID lookups
	_, err = env.paymentRepo.GetBySwapID(context.Background(), "swap-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestHandleCallbackUnknownTxnRef(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))

	_, err := env.svc.HandleCallback(context.Background(), signedQuery(env, "EV-UNKNOWN", 50000, "00"))
	assert.True(t, errors.Is(err, errors.ErrPaymentNotFound))
}

func TestConfirmCashPayment(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))

	info, err := env.svc.ConfirmCashPayment(context.Background(), 42, &ConfirmCashRequest{SwapID: "swap-1", Amount: 50000})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentChannelCash, info.Channel)
	assert.Equal(t, int8(models.PaymentStatusPaid), info.Status)
	assert.NotNil(t, info.PaidAt)
	assert.Equal(t, 1, *env.markPaid)
}

func TestConfirmCashPaymentAmountMustMatch(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))

	_, err := env.svc.ConfirmCashPayment(context.Background(), 42, &ConfirmCashRequest{SwapID: "swap-1", Amount: 45000})
	assert.True(t, errors.Is(err, errors.ErrPaymentAmountError))
}

func TestGetBySwapNotFound(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))

	_, err := env.svc.GetBySwap(context.Background(), "swap-1")
	assert.True(t, errors.Is(err, errors.ErrPaymentNotFound))
}

func TestExpirePending(t *testing.T) {
	env := newTestEnv(t, swapMux(t, swapFixture(coreapi.SwapStatusBatteryReturned, false, 50000)))
	ctx := context.Background()

	createPendingPayment(t, env)

	// too recent, nothing expires
	count, err := env.svc.ExpirePending(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// age the record past the cutoff
	stored, err := env.paymentRepo.GetBySwapID(ctx, "swap-1")
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	stored.CreatedAt = old
	require.NoError(t, env.paymentRepo.Update(ctx, stored))

	count, err = env.svc.ExpirePending(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
