package vault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	vaultapi "github.com/hashicorp/vault/api"
)

// valueField is the KV v2 data field holding an entry's value.
const valueField = "value"

// KVBackend stores entries as KV v2 secrets at
// {mount}/data/{prefix}/{service}/{account}, one "value" field each.
type KVBackend struct {
	client *Client
	prefix string
}

// NewKVBackend returns a backend writing below prefix on the client's mount.
func NewKVBackend(client *Client, prefix string) *KVBackend {
	return &KVBackend{client: client, prefix: prefix}
}

func (b *KVBackend) Get(ctx context.Context, service, account string) (string, bool, error) {
	kvPath := b.entryPath(service, account)

	secret, err := b.client.api.Logical().ReadWithContext(ctx, buildKV2Path(b.client.mount, kvPath))
	if err != nil {
		if isPermissionDenied(err) {
			return "", false, fmt.Errorf("reading KV path %q: permission denied: %w", kvPath, err)
		}
		return "", false, fmt.Errorf("reading KV path %q: %w", kvPath, err)
	}

	if secret == nil || secret.Data == nil {
		return "", false, nil
	}

	return extractKV2Value(secret.Data, kvPath)
}

func (b *KVBackend) Set(ctx context.Context, service, account, value string) error {
	kvPath := b.entryPath(service, account)

	data := map[string]interface{}{
		"data": map[string]interface{}{
			valueField: value,
		},
	}

	if _, err := b.client.api.Logical().WriteWithContext(ctx, buildKV2Path(b.client.mount, kvPath), data); err != nil {
		if isPermissionDenied(err) {
			return fmt.Errorf("writing KV path %q: permission denied: %w", kvPath, err)
		}
		return fmt.Errorf("writing KV path %q: %w", kvPath, err)
	}
	return nil
}

// Delete removes all versions of the entry through its metadata path.
func (b *KVBackend) Delete(ctx context.Context, service, account string) error {
	kvPath := b.entryPath(service, account)

	if _, err := b.client.api.Logical().DeleteWithContext(ctx, buildKV2MetadataPath(b.client.mount, kvPath)); err != nil {
		return fmt.Errorf("deleting KV path %q: %w", kvPath, err)
	}
	return nil
}

func (b *KVBackend) entryPath(service, account string) string {
	return path.Join(b.prefix, service, account)
}

// buildKV2Path inserts "data" between the mount point and the secret path.
func buildKV2Path(basePath string, kvPath string) string {
	return path.Join(basePath, "data", kvPath)
}

// buildKV2MetadataPath constructs the KV v2 metadata path.
func buildKV2MetadataPath(basePath string, kvPath string) string {
	return path.Join(basePath, "metadata", kvPath)
}

// extractKV2Value pulls the value field out of a KV v2 read response, which
// nests the secret under response.Data["data"]. A soft-deleted version
// returns data: null and is reported as absent.
func extractKV2Value(responseData map[string]interface{}, kvPath string) (string, bool, error) {
	dataRaw, ok := responseData["data"]
	if !ok || dataRaw == nil {
		return "", false, nil
	}

	dataMap, ok := dataRaw.(map[string]interface{})
	if !ok {
		return "", false, fmt.Errorf("reading KV path %q: unexpected data format", kvPath)
	}

	raw, ok := dataMap[valueField]
	if !ok {
		return "", false, nil
	}

	value, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("reading KV path %q: %s is %T, not a string", kvPath, valueField, raw)
	}

	return value, true, nil
}

// isPermissionDenied checks whether a Vault API error is a 403.
func isPermissionDenied(err error) bool {
	var respErr *vaultapi.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusForbidden
	}
	return false
}
