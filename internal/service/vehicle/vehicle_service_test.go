package vehicle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
	"github.com/tdnguyen-dev/evswap-station/pkg/oss"
)

const testVIN = "1HGBH41JXMN109186"

// pngBytes starts with the PNG signature so content sniffing accepts it.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type testEnv struct {
	svc      *VehicleService
	uploader *oss.MockUploader
}

func newTestEnv(t *testing.T, mux *http.ServeMux) *testEnv {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	core := coreapi.New(&coreapi.Config{BaseURL: server.URL, Timeout: 5 * time.Second}, zap.NewNop())
	uploader := oss.NewMockUploader()
	return &testEnv{
		svc:      NewVehicleService(core, uploader, 0.6, 1),
		uploader: uploader,
	}
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	var gotBody map[string]string
	mux.HandleFunc("/api/v1/vehicles", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(coreapi.Vehicle{ID: "veh-1", VIN: gotBody["vin"]})
	})
	env := newTestEnv(t, mux)

	vehicle, err := env.svc.Register(context.Background(), &RegisterRequest{
		VIN:            " 1hgbh41jxmn109186 ",
		Plate:          "51F-12345",
		VehicleModelID: "vm-1",
		Photo:          &Photo{FileName: "front.png", Data: pngBytes},
	})
	require.NoError(t, err)
	assert.Equal(t, "veh-1", vehicle.ID)
	assert.Equal(t, testVIN, gotBody["vin"], "VIN is trimmed and uppercased")
	assert.Contains(t, gotBody["photoUrl"], "https://mock-oss.example.com/vehicles/")
	assert.Len(t, env.uploader.Files, 1)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, http.NewServeMux())
	ctx := context.Background()

	_, err := env.svc.Register(ctx, &RegisterRequest{VIN: "SHORT", Plate: "51F-12345", VehicleModelID: "vm-1"})
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))

	_, err = env.svc.Register(ctx, &RegisterRequest{VIN: testVIN, Plate: "nope", VehicleModelID: "vm-1"})
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))

	_, err = env.svc.Register(ctx, &RegisterRequest{VIN: testVIN, Plate: "51F-12345"})
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))
}

func TestRegisterDuplicateVIN(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vehicles", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"vin already registered"}`))
	})
	env := newTestEnv(t, mux)

	_, err := env.svc.Register(context.Background(), &RegisterRequest{
		VIN:            testVIN,
		Plate:          "51F-12345",
		VehicleModelID: "vm-1",
	})
	assert.True(t, errors.Is(err, errors.ErrVinExists))
}

func TestRegisterRejectsOversizedPhoto(t *testing.T) {
	env := newTestEnv(t, http.NewServeMux()) // limit is 1 MB

	big := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 2<<20)...)
	_, err := env.svc.Register(context.Background(), &RegisterRequest{
		VIN:            testVIN,
		Plate:          "51F-12345",
		VehicleModelID: "vm-1",
		Photo:          &Photo{FileName: "front.png", Data: big},
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))
}

func TestRegisterRejectsNonImage(t *testing.T) {
	env := newTestEnv(t, http.NewServeMux())

	_, err := env.svc.Register(context.Background(), &RegisterRequest{
		VIN:            testVIN,
		Plate:          "51F-12345",
		VehicleModelID: "vm-1",
		Photo:          &Photo{FileName: "notes.txt", Data: []byte("plain text")},
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))
}

func vehicleMux(t *testing.T, current coreapi.Vehicle) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vehicles/veh-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPatch {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			updated := current
			if plate := body["plate"]; plate != "" {
				updated.Plate = plate
			}
			_ = json.NewEncoder(w).Encode(updated)
			return
		}
		_ = json.NewEncoder(w).Encode(current)
	})
	return mux
}

func TestUpdatePlate(t *testing.T) {
	env := newTestEnv(t, vehicleMux(t, coreapi.Vehicle{ID: "veh-1", VIN: testVIN, Plate: "51F-12345"}))

	vehicle, err := env.svc.Update(context.Background(), "veh-1", &UpdateRequest{Plate: "29A-54321"})
	require.NoError(t, err)
	assert.Equal(t, "29A-54321", vehicle.Plate)
}

func TestUpdateVinImmutable(t *testing.T) {
	env := newTestEnv(t, vehicleMux(t, coreapi.Vehicle{ID: "veh-1", VIN: testVIN}))

	_, err := env.svc.Update(context.Background(), "veh-1", &UpdateRequest{VIN: "5YJSA1E26MF000001"})
	assert.True(t, errors.Is(err, errors.ErrVinImmutable))

	// restating the current VIN in any case is not a change
	_, err = env.svc.Update(context.Background(), "veh-1", &UpdateRequest{VIN: "1hgbh41jxmn109186"})
	assert.NoError(t, err)
}

func TestGetNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vehicles/veh-404", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	env := newTestEnv(t, mux)

	_, err := env.svc.Get(context.Background(), "veh-404")
	assert.True(t, errors.Is(err, errors.ErrVehicleNotFound))
}

func scanMux(t *testing.T, result coreapi.ScanResult) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vehicles/scan-registration", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(8<<20))
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		assert.Equal(t, "card.png", header.Filename)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	})
	return mux
}

func TestScanRegistration(t *testing.T) {
	env := newTestEnv(t, scanMux(t, coreapi.ScanResult{
		VIN:        "1hgbh41jxmn109186",
		Plate:      "51F-12345",
		Confidence: 0.92,
	}))

	result, err := env.svc.ScanRegistration(context.Background(), &Photo{FileName: "card.png", Data: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, testVIN, result.VIN, "scanned VIN is uppercased")
	assert.Equal(t, "51F-12345", result.Plate)
}

func TestScanRegistrationLowConfidence(t *testing.T) {
	env := newTestEnv(t, scanMux(t, coreapi.ScanResult{VIN: testVIN, Confidence: 0.4}))

	_, err := env.svc.ScanRegistration(context.Background(), &Photo{FileName: "card.png", Data: pngBytes})
	assert.True(t, errors.Is(err, errors.ErrScanLowConfidence))
}

func TestScanRegistrationOCRError(t *testing.T) {
	env := newTestEnv(t, scanMux(t, coreapi.ScanResult{ErrorMessage: "document is not a registration card"}))

	_, err := env.svc.ScanRegistration(context.Background(), &Photo{FileName: "card.png", Data: pngBytes})
	require.True(t, errors.Is(err, errors.ErrScanFailed))
	assert.Equal(t, "document is not a registration card", errors.GetAppError(err).Message)
}

func TestScanRegistrationRequiresImage(t *testing.T) {
	env := newTestEnv(t, http.NewServeMux())

	_, err := env.svc.ScanRegistration(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))

	_, err = env.svc.ScanRegistration(context.Background(), &Photo{FileName: "card.png"})
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))
}
