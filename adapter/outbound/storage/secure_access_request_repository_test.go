package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ajkula/GoAccessGate/domain/model"
)

type mockLogger struct {
	mu   sync.Mutex
	logs []string
}

func (m *mockLogger) record(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, msg)
}

func (m *mockLogger) Debug(msg string, args ...any) { m.record(msg) }
func (m *mockLogger) Info(msg string, args ...any)  { m.record(msg) }
func (m *mockLogger) Warn(msg string, args ...any)  { m.record(msg) }
func (m *mockLogger) Error(msg string, args ...any) { m.record(msg) }

// XOR stands in for AES so tests do not depend on the real cipher
type mockCryptoService struct{}

func (m *mockCryptoService) Encrypt(data []byte, key [32]byte) ([]byte, []byte, error) {
	encrypted := make([]byte, len(data))
	for i, b := range data {
		encrypted[i] = b ^ key[i%32]
	}
	return encrypted, []byte("test-nonce-12"), nil
}

func (m *mockCryptoService) Decrypt(encrypted []byte, nonce []byte, key [32]byte) ([]byte, error) {
	if string(nonce) != "test-nonce-12" {
		return nil, errors.New("invalid nonce")
	}
	decrypted := make([]byte, len(encrypted))
	for i, b := range encrypted {
		decrypted[i] = b ^ key[i%32]
	}
	return decrypted, nil
}

func (m *mockCryptoService) DeriveKey(secret string) [32]byte {
	var key [32]byte
	copy(key[:], secret)
	return key
}

type mockMachineIDService struct {
	id  string
	err error
}

func (m *mockMachineIDService) GetMachineID() (string, error) {
	return m.id, m.err
}

func createTestRepository(t *testing.T) (*secureAccessRequestRepository, string) {
	tempDir, err := os.MkdirTemp("", "accessgate-test-")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tempDir)
	})

	filePath := filepath.Join(tempDir, "nested", "access_requests.db")
	repo, err := NewSecureAccessRequestRepository(filePath, &mockCryptoService{}, &mockMachineIDService{id: "machine-123"}, &mockLogger{})
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	return repo.(*secureAccessRequestRepository), filePath
}

func createTestAccessRequest(id string, status model.AccessRequestStatus, createdAt time.Time) *model.AccessRequest {
	return &model.AccessRequest{
		RequestID:   id,
		Module:      model.ModuleScheduler,
		RequestType: model.RequestTypeDelete,
		Remarks:     "remove duplicate trip",
		Username:    "alice",
		UserRole:    model.RoleDispatcher,
		Status:      status,
		CreatedAt:   createdAt,
	}
}

func TestSecureAccessRequestRepository_MachineIDFailure(t *testing.T) {
	tempDir := t.TempDir()

	_, err := NewSecureAccessRequestRepository(
		filepath.Join(tempDir, "requests.db"),
		&mockCryptoService{},
		&mockMachineIDService{err: errors.New("no machine id")},
		&mockLogger{},
	)
	if err == nil {
		t.Fatal("Expected error when the machine ID is unavailable")
	}
}

func TestSecureAccessRequestRepository_EmptyDatabase(t *testing.T) {
	repo, filePath := createTestRepository(t)
	ctx := context.Background()

	requests, err := repo.List(ctx, nil)
	if err != nil {
		t.Fatalf("Expected empty list, got error: %v", err)
	}
	if len(requests) != 0 {
		t.Errorf("Expected 0 requests, got %d", len(requests))
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, model.ErrAccessRequestNotFound) {
		t.Errorf("Expected ErrAccessRequestNotFound, got %v", err)
	}

	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Error("Reads must not create the database file")
	}
}

func TestSecureAccessRequestRepository_StoreAndReload(t *testing.T) {
	repo, filePath := createTestRepository(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	expiresAt := now.Add(time.Hour)
	request := createTestAccessRequest("req-1", model.AccessRequestApproved, now)
	request.ExpiresAt = &expiresAt

	if err := repo.Store(ctx, request); err != nil {
		t.Fatalf("Failed to store request: %v", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		t.Fatalf("Database file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected file mode 0600, got %v", info.Mode().Perm())
	}

	// a second repository on the same file sees the same data
	reopened, err := NewSecureAccessRequestRepository(filePath, &mockCryptoService{}, &mockMachineIDService{id: "machine-123"}, &mockLogger{})
	if err != nil {
		t.Fatalf("Failed to reopen repository: %v", err)
	}

	retrieved, err := reopened.GetByID(ctx, "req-1")
	if err != nil {
		t.Fatalf("Failed to retrieve request: %v", err)
	}
	if retrieved.Username != "alice" || retrieved.Module != model.ModuleScheduler {
		t.Errorf("Unexpected request %+v", retrieved)
	}
	if retrieved.ExpiresAt == nil || !retrieved.ExpiresAt.Equal(expiresAt) {
		t.Errorf("Expected ExpiresAt %v, got %v", expiresAt, retrieved.ExpiresAt)
	}
}

func TestSecureAccessRequestRepository_ReturnsCopies(t *testing.T) {
	repo, _ := createTestRepository(t)
	ctx := context.Background()

	request := createTestAccessRequest("req-1", model.AccessRequestPending, time.Now())
	if err := repo.Store(ctx, request); err != nil {
		t.Fatalf("Failed to store request: %v", err)
	}

	request.Status = model.AccessRequestApproved
	retrieved, _ := repo.GetByID(ctx, "req-1")
	if retrieved.Status != model.AccessRequestPending {
		t.Error("Mutating the stored value must not change the repository")
	}

	retrieved.Remarks = "changed"
	again, _ := repo.GetByID(ctx, "req-1")
	if again.Remarks != "remove duplicate trip" {
		t.Error("Mutating a returned value must not change the repository")
	}
}

func TestSecureAccessRequestRepository_ListFiltersAndSorts(t *testing.T) {
	repo, _ := createTestRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	_ = repo.Store(ctx, createTestAccessRequest("c", model.AccessRequestPending, base.Add(2*time.Minute)))
	_ = repo.Store(ctx, createTestAccessRequest("a", model.AccessRequestRejected, base))
	_ = repo.Store(ctx, createTestAccessRequest("b", model.AccessRequestPending, base.Add(time.Minute)))

	all, err := repo.List(ctx, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].RequestID != "a" || all[1].RequestID != "b" || all[2].RequestID != "c" {
		t.Errorf("Expected requests ordered by creation, got %v", ids(all))
	}

	status := model.AccessRequestPending
	pendingOnly, err := repo.List(ctx, &status)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pendingOnly) != 2 {
		t.Errorf("Expected 2 pending requests, got %d", len(pendingOnly))
	}
}

func TestSecureAccessRequestRepository_Delete(t *testing.T) {
	repo, _ := createTestRepository(t)
	ctx := context.Background()

	_ = repo.Store(ctx, createTestAccessRequest("req-1", model.AccessRequestPending, time.Now()))

	if err := repo.Delete(ctx, "req-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, "req-1"); !errors.Is(err, model.ErrAccessRequestNotFound) {
		t.Errorf("Expected ErrAccessRequestNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, "req-1"); !errors.Is(err, model.ErrAccessRequestNotFound) {
		t.Errorf("Expected ErrAccessRequestNotFound on second delete, got %v", err)
	}
}

func TestSecureAccessRequestRepository_TamperedFile(t *testing.T) {
	repo, filePath := createTestRepository(t)
	ctx := context.Background()

	_ = repo.Store(ctx, createTestAccessRequest("req-1", model.AccessRequestPending, time.Now()))

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read database file: %v", err)
	}
	var envelope EncryptedAccessRequestFile
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("Failed to decode envelope: %v", err)
	}
	envelope.Data[0] ^= 0xFF
	tampered, _ := json.Marshal(envelope)
	if err := os.WriteFile(filePath, tampered, 0600); err != nil {
		t.Fatalf("Failed to write tampered file: %v", err)
	}

	reopened, _ := NewSecureAccessRequestRepository(filePath, &mockCryptoService{}, &mockMachineIDService{id: "machine-123"}, &mockLogger{})
	if _, err := reopened.List(ctx, nil); !errors.Is(err, model.ErrInvalidChecksum) {
		t.Errorf("Expected ErrInvalidChecksum, got %v", err)
	}

	if err := os.WriteFile(filePath, []byte("not json"), 0600); err != nil {
		t.Fatalf("Failed to write garbage: %v", err)
	}
	reopened, _ = NewSecureAccessRequestRepository(filePath, &mockCryptoService{}, &mockMachineIDService{id: "machine-123"}, &mockLogger{})
	if _, err := reopened.List(ctx, nil); !errors.Is(err, model.ErrAccessRequestDatabaseCorrupted) {
		t.Errorf("Expected ErrAccessRequestDatabaseCorrupted, got %v", err)
	}
}

func TestSecureAccessRequestRepository_ConcurrentStores(t *testing.T) {
	repo, _ := createTestRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if err := repo.Store(ctx, createTestAccessRequest(id, model.AccessRequestPending, time.Now())); err != nil {
				t.Errorf("Store %s failed: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	all, _ := repo.List(ctx, nil)
	if len(all) != 20 {
		t.Errorf("Expected 20 requests, got %d", len(all))
	}
}

func ids(requests []*model.AccessRequest) []string {
	out := make([]string, len(requests))
	for i, r := range requests {
		out[i] = r.RequestID
	}
	return out
}
