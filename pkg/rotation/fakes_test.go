package rotation

import (
	"context"
	"sync"
	"time"

	"github.com/systmms/credrotate/pkg/cloudclient"
	"github.com/systmms/credrotate/pkg/secretstore"
)

// fakeCloudClient is a hand-written test double for cloudclient.Client,
// driven by function fields rather than a mock-generated type.
type fakeCloudClient struct {
	mu sync.Mutex

	GetDatabaseServerDetailsFunc            func(ctx context.Context, resourceId string) (*cloudclient.DatabaseServerDetails, error)
	UpdateDatabaseAdministratorPasswordFunc func(ctx context.Context, resourceId, password string) (bool, error)
	GetTwoStorageAccountKeysFunc            func(ctx context.Context, resourceId string) ([]cloudclient.StorageKey, error)
	RegenerateStorageAccountKeyFunc         func(ctx context.Context, resourceId string, keyName cloudclient.StorageKeyName) (*cloudclient.StorageKey, error)

	UpdatePasswordCalls []string
	RegenerateCalls     []cloudclient.StorageKeyName
}

func (f *fakeCloudClient) GetDatabaseServerDetails(ctx context.Context, resourceId string) (*cloudclient.DatabaseServerDetails, error) {
	if f.GetDatabaseServerDetailsFunc != nil {
		return f.GetDatabaseServerDetailsFunc(ctx, resourceId)
	}
	return &cloudclient.DatabaseServerDetails{Hostname: "db.example.internal", AdministratorUsername: "pgadmin"}, nil
}

func (f *fakeCloudClient) UpdateDatabaseAdministratorPassword(ctx context.Context, resourceId, password string) (bool, error) {
	f.mu.Lock()
	f.UpdatePasswordCalls = append(f.UpdatePasswordCalls, password)
	f.mu.Unlock()

	if f.UpdateDatabaseAdministratorPasswordFunc != nil {
		return f.UpdateDatabaseAdministratorPasswordFunc(ctx, resourceId, password)
	}
	return true, nil
}

func (f *fakeCloudClient) GetTwoStorageAccountKeys(ctx context.Context, resourceId string) ([]cloudclient.StorageKey, error) {
	if f.GetTwoStorageAccountKeysFunc != nil {
		return f.GetTwoStorageAccountKeysFunc(ctx, resourceId)
	}
	return []cloudclient.StorageKey{
		{Name: cloudclient.StorageKey1, Value: "initial-key1"},
		{Name: cloudclient.StorageKey2, Value: "initial-key2"},
	}, nil
}

func (f *fakeCloudClient) RegenerateStorageAccountKey(ctx context.Context, resourceId string, keyName cloudclient.StorageKeyName) (*cloudclient.StorageKey, error) {
	f.mu.Lock()
	f.RegenerateCalls = append(f.RegenerateCalls, keyName)
	f.mu.Unlock()

	if f.RegenerateStorageAccountKeyFunc != nil {
		return f.RegenerateStorageAccountKeyFunc(ctx, resourceId, keyName)
	}
	return &cloudclient.StorageKey{Name: keyName, Value: "regenerated-" + string(keyName)}, nil
}

// fakeStore is a secretstore.Store test double that lets tests force read
// or write failures, something the real MemoryStore never needs to do.
type fakeStore struct {
	mu    sync.Mutex
	items map[string]fakeStoreItem

	GetSecretErr      error
	GetSecretValueErr error
	UpdateSecretFails bool

	UpdateSecretCalls []fakeStoreUpdateCall
}

type fakeStoreItem struct {
	info  secretstore.SecretInfo
	value string
}

type fakeStoreUpdateCall struct {
	Name        string
	Value       string
	ExpiresOn   *time.Time
	ContentType string
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[string]fakeStoreItem)}
}

// seed pre-populates a secret without going through UpdateSecret, so tests
// can set up arbitrary CreatedOn/UpdatedOn/ExpiresOn combinations.
func (f *fakeStore) seed(name, value string, expiresOn *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[name] = fakeStoreItem{
		info: secretstore.SecretInfo{
			Id:          "seed-" + name,
			Name:        name,
			ContentType: "text/plain",
			Enabled:     true,
			CreatedOn:   time.Now(),
			ExpiresOn:   expiresOn,
			UpdatedOn:   time.Now(),
			StoreId:     "fake",
			Version:     "1",
		},
		value: value,
	}
}

func (f *fakeStore) GetSecret(name string) (*secretstore.SecretInfo, error) {
	if f.GetSecretErr != nil {
		return nil, f.GetSecretErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[name]
	if !ok {
		return nil, nil
	}
	info := item.info
	return &info, nil
}

func (f *fakeStore) GetSecretValue(name string) (*string, error) {
	if f.GetSecretValueErr != nil {
		return nil, f.GetSecretValueErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[name]
	if !ok {
		return nil, nil
	}
	value := item.value
	return &value, nil
}

func (f *fakeStore) UpdateSecret(name, value string, expiresOn *time.Time, contentType string) (*secretstore.SecretInfo, error) {
	f.mu.Lock()
	f.UpdateSecretCalls = append(f.UpdateSecretCalls, fakeStoreUpdateCall{Name: name, Value: value, ExpiresOn: expiresOn, ContentType: contentType})
	f.mu.Unlock()

	if f.UpdateSecretFails {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	existing, existed := f.items[name]
	info := secretstore.SecretInfo{
		Id:          "fake-" + name,
		Name:        name,
		ContentType: contentType,
		Enabled:     true,
		UpdatedOn:   now,
		ExpiresOn:   expiresOn,
		StoreId:     "fake",
		Version:     "updated",
	}
	if existed {
		info.CreatedOn = existing.info.CreatedOn
	} else {
		info.CreatedOn = now
	}
	f.items[name] = fakeStoreItem{info: info, value: value}

	result := info
	return &result, nil
}
