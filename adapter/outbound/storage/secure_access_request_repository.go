package storage

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

const accessRequestFileVersion = 1

// EncryptedAccessRequestFile is the on-disk envelope of the encrypted request database
type EncryptedAccessRequestFile struct {
	Version  uint32   `json:"version"`
	Nonce    []byte   `json:"nonce"`
	Data     []byte   `json:"data"`
	Checksum [32]byte `json:"checksum"`
}

// accessRequestDatabase is the decrypted payload
type accessRequestDatabase struct {
	Requests map[string]*model.AccessRequest `json:"requests"`
}

type secureAccessRequestRepository struct {
	filePath string
	crypto   outbound.CryptoService
	logger   outbound.Logger
	key      [32]byte

	mu       sync.Mutex
	database *accessRequestDatabase
}

// NewSecureAccessRequestRepository stores requests in an AES-GCM encrypted file whose key is
// derived from the machine ID, so the file cannot be read on another host.
func NewSecureAccessRequestRepository(
	filePath string,
	crypto outbound.CryptoService,
	machineID outbound.MachineIDService,
	logger outbound.Logger,
) (outbound.AccessRequestRepository, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create access request database directory: %w", err)
	}

	id, err := machineID.GetMachineID()
	if err != nil {
		return nil, err
	}

	return &secureAccessRequestRepository{
		filePath: filePath,
		crypto:   crypto,
		logger:   logger,
		key:      crypto.DeriveKey(id),
	}, nil
}

func (r *secureAccessRequestRepository) Store(ctx context.Context, request *model.AccessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return err
	}

	r.database.Requests[request.RequestID] = request.Clone()
	return r.save()
}

func (r *secureAccessRequestRepository) GetByID(ctx context.Context, requestID string) (*model.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}

	if request, exists := r.database.Requests[requestID]; exists {
		return request.Clone(), nil
	}
	return nil, model.ErrAccessRequestNotFound
}

func (r *secureAccessRequestRepository) List(ctx context.Context, status *model.AccessRequestStatus) ([]*model.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}

	result := make([]*model.AccessRequest, 0, len(r.database.Requests))
	for _, request := range r.database.Requests {
		if status == nil || request.Status == *status {
			result = append(result, request.Clone())
		}
	}
	sortByCreation(result)
	return result, nil
}

func (r *secureAccessRequestRepository) Delete(ctx context.Context, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return err
	}

	if _, exists := r.database.Requests[requestID]; !exists {
		return model.ErrAccessRequestNotFound
	}
	delete(r.database.Requests, requestID)
	return r.save()
}

// ensureLoaded reads the file once; a missing file is an empty database
func (r *secureAccessRequestRepository) ensureLoaded() error {
	if r.database != nil {
		return nil
	}

	db, err := r.load()
	if errors.Is(err, model.ErrAccessRequestDatabaseNotFound) {
		r.database = &accessRequestDatabase{Requests: make(map[string]*model.AccessRequest)}
		return nil
	}
	if err != nil {
		return err
	}
	r.database = db
	return nil
}

func (r *secureAccessRequestRepository) load() (*accessRequestDatabase, error) {
	r.logger.Debug("Loading access request database", "path", r.filePath)

	fileData, err := os.ReadFile(r.filePath)
	if os.IsNotExist(err) {
		return nil, model.ErrAccessRequestDatabaseNotFound
	}
	if err != nil {
		return nil, err
	}

	var encFile EncryptedAccessRequestFile
	if err := json.Unmarshal(fileData, &encFile); err != nil {
		return nil, model.ErrAccessRequestDatabaseCorrupted
	}

	if sha256.Sum256(encFile.Data) != encFile.Checksum {
		return nil, model.ErrInvalidChecksum
	}

	decrypted, err := r.crypto.Decrypt(encFile.Data, encFile.Nonce, r.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrAccessRequestDatabaseCorrupted, err)
	}

	var db accessRequestDatabase
	if err := json.Unmarshal(decrypted, &db); err != nil {
		return nil, model.ErrAccessRequestDatabaseCorrupted
	}
	if db.Requests == nil {
		db.Requests = make(map[string]*model.AccessRequest)
	}

	r.logger.Info("Access request database loaded", "request_count", len(db.Requests))
	return &db, nil
}

func (r *secureAccessRequestRepository) save() error {
	jsonData, err := json.Marshal(r.database)
	if err != nil {
		return err
	}

	encrypted, nonce, err := r.crypto.Encrypt(jsonData, r.key)
	if err != nil {
		return err
	}

	fileJSON, err := json.Marshal(EncryptedAccessRequestFile{
		Version:  accessRequestFileVersion,
		Nonce:    nonce,
		Data:     encrypted,
		Checksum: sha256.Sum256(encrypted),
	})
	if err != nil {
		return err
	}

	// write-then-rename keeps the previous file intact if the process dies mid-write
	tmp := r.filePath + ".tmp"
	if err := os.WriteFile(tmp, fileJSON, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, r.filePath); err != nil {
		return err
	}

	r.logger.Debug("Access request database saved", "path", r.filePath, "request_count", len(r.database.Requests))
	return nil
}

func sortByCreation(requests []*model.AccessRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].RequestID < requests[j].RequestID
		}
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
}
