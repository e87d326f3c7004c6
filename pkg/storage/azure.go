// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/NVIDIA/appstack/pkg/defaults"
	"github.com/NVIDIA/appstack/pkg/engine"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/stack"
)

// Azure provisions a storage account and blob container through ARM and
// uploads with the account's shared key.
type Azure struct {
	settings   stack.StorageSettings
	accounts   *armstorage.AccountsClient
	containers *armstorage.BlobContainersClient

	mu   sync.Mutex
	blob *azblob.Client
}

// NewAzure authenticates with the default Azure credential chain.
func NewAzure(_ context.Context, s stack.StorageSettings) (*Azure, error) {
	if s.SubscriptionID == "" {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidConfig,
			"storage.subscriptionId (or AZURE_SUBSCRIPTION_ID) is required for the azure backend")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeUnavailable, "failed to obtain Azure credentials", err)
	}
	factory, err := armstorage.NewClientFactory(s.SubscriptionID, cred, nil)
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to create storage client factory", err)
	}
	return &Azure{
		settings:   s,
		accounts:   factory.NewAccountsClient(),
		containers: factory.NewBlobContainersClient(),
	}, nil
}

// Name implements Backend.
func (a *Azure) Name() string { return stack.BackendAzure }

// EnsureAccount creates the storage account, or updates it when SKU, kind or
// public access drifted.
func (a *Azure) EnsureAccount(ctx context.Context) (engine.Change, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.StorageAccountTimeout)
	defer cancel()

	s := a.settings
	existed := true
	resp, err := a.accounts.GetProperties(ctx, s.ResourceGroup, s.AccountName, nil)
	switch {
	case err == nil:
		if a.accountMatches(resp.Account) {
			return engine.ChangeSame, nil
		}
	case isAzureNotFound(err):
		existed = false
	default:
		return engine.ChangeNone, wrap(azureCode(err), a.Name(), "read account", s.AccountName, err)
	}

	slog.Debug("provisioning storage account", "account", s.AccountName, "resourceGroup", s.ResourceGroup, "existed", existed)
	poller, err := a.accounts.BeginCreate(ctx, s.ResourceGroup, s.AccountName, armstorage.AccountCreateParameters{
		Kind:     to.Ptr(armstorage.Kind(s.Kind)),
		Location: to.Ptr(s.Location),
		SKU:      &armstorage.SKU{Name: to.Ptr(armstorage.SKUName(s.SKU))},
		Properties: &armstorage.AccountPropertiesCreateParameters{
			AllowBlobPublicAccess: to.Ptr(s.PublicRead),
			MinimumTLSVersion:     to.Ptr(armstorage.MinimumTLSVersionTLS12),
		},
	}, nil)
	if err != nil {
		return engine.ChangeNone, wrap(azureCode(err), a.Name(), "create account", s.AccountName, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return engine.ChangeNone, wrap(azureCode(err), a.Name(), "create account", s.AccountName, err)
	}
	return changeFor(existed, false), nil
}

func (a *Azure) accountMatches(acct armstorage.Account) bool {
	if acct.SKU == nil || acct.SKU.Name == nil || string(*acct.SKU.Name) != a.settings.SKU {
		return false
	}
	if acct.Kind == nil || string(*acct.Kind) != a.settings.Kind {
		return false
	}
	public := acct.Properties != nil && acct.Properties.AllowBlobPublicAccess != nil && *acct.Properties.AllowBlobPublicAccess
	return public == a.settings.PublicRead
}

// EnsureContainer implements Backend. Public read maps to blob-level anonymous access.
func (a *Azure) EnsureContainer(ctx context.Context, container string, publicRead bool) (engine.Change, error) {
	s := a.settings
	access := armstorage.PublicAccessNone
	if publicRead {
		access = armstorage.PublicAccessBlob
	}
	desired := armstorage.BlobContainer{
		ContainerProperties: &armstorage.ContainerProperties{PublicAccess: to.Ptr(access)},
	}

	resp, err := a.containers.Get(ctx, s.ResourceGroup, s.AccountName, container, nil)
	if err != nil {
		if !isAzureNotFound(err) {
			return engine.ChangeNone, wrap(azureCode(err), a.Name(), "read container", container, err)
		}
		if _, err := a.containers.Create(ctx, s.ResourceGroup, s.AccountName, container, desired, nil); err != nil {
			return engine.ChangeNone, wrap(azureCode(err), a.Name(), "create container", container, err)
		}
		return engine.ChangeCreate, nil
	}

	current := armstorage.PublicAccessNone
	if p := resp.ContainerProperties; p != nil && p.PublicAccess != nil {
		current = *p.PublicAccess
	}
	if current == access {
		return engine.ChangeSame, nil
	}
	if _, err := a.containers.Update(ctx, s.ResourceGroup, s.AccountName, container, desired, nil); err != nil {
		return engine.ChangeNone, wrap(azureCode(err), a.Name(), "update container", container, err)
	}
	return engine.ChangeUpdate, nil
}

// PutBlob uploads the content unless the stored digest already matches.
func (a *Azure) PutBlob(ctx context.Context, container, name string, content *Content) (engine.Change, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.StorageUploadTimeout)
	defer cancel()

	client, err := a.blobClient(ctx)
	if err != nil {
		return engine.ChangeNone, err
	}
	bb := client.ServiceClient().NewContainerClient(container).NewBlockBlobClient(name)

	existed := true
	props, err := bb.GetProperties(ctx, nil)
	switch {
	case err == nil:
		if content.Matches(flattenMetadata(props.Metadata), props.ContentMD5) {
			return engine.ChangeSame, nil
		}
	case bloberror.HasCode(err, bloberror.BlobNotFound) || isAzureNotFound(err):
		existed = false
	default:
		return engine.ChangeNone, wrap(azureCode(err), a.Name(), "read blob", name, err)
	}

	_, err = bb.UploadBuffer(ctx, content.Data, &blockblob.UploadBufferOptions{
		Metadata: map[string]*string{DigestMetadataKey: to.Ptr(content.SHA256)},
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(content.ContentType),
			BlobContentMD5:  content.MD5,
		},
	})
	if err != nil {
		return engine.ChangeNone, wrap(azureCode(err), a.Name(), "upload blob", name, err)
	}
	return changeFor(existed, false), nil
}

// BlobURL returns the blob URL, or a read-only SAS URL when the container is private.
// The SAS carries no start time, so the same expiry always yields the same URL.
func (a *Azure) BlobURL(ctx context.Context, container, name string, access Access) (string, error) {
	client, err := a.blobClient(ctx)
	if err != nil {
		return "", err
	}
	bb := client.ServiceClient().NewContainerClient(container).NewBlockBlobClient(name)
	if access.PublicRead {
		return bb.URL(), nil
	}
	u, err := bb.GetSASURL(sas.BlobPermissions{Read: true}, access.Expiry, nil)
	if err != nil {
		return "", wrap(cnserrors.ErrCodeInternal, a.Name(), "sign url for", name, err)
	}
	return u, nil
}

// DeleteBlob implements Backend.
func (a *Azure) DeleteBlob(ctx context.Context, container, name string) error {
	client, err := a.blobClient(ctx)
	if err != nil {
		if cnserrors.IsCode(err, cnserrors.ErrCodeNotFound) {
			return nil
		}
		return err
	}
	_, err = client.DeleteBlob(ctx, container, name, nil)
	if err == nil || bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) || isAzureNotFound(err) {
		return nil
	}
	return wrap(azureCode(err), a.Name(), "delete blob", name, err)
}

// DeleteContainer implements Backend.
func (a *Azure) DeleteContainer(ctx context.Context, container string) error {
	s := a.settings
	_, err := a.containers.Delete(ctx, s.ResourceGroup, s.AccountName, container, nil)
	if err == nil || isAzureNotFound(err) {
		return nil
	}
	return wrap(azureCode(err), a.Name(), "delete container", container, err)
}

// DeleteAccount implements Backend.
func (a *Azure) DeleteAccount(ctx context.Context) error {
	s := a.settings
	_, err := a.accounts.Delete(ctx, s.ResourceGroup, s.AccountName, nil)
	if err == nil || isAzureNotFound(err) {
		a.mu.Lock()
		a.blob = nil
		a.mu.Unlock()
		return nil
	}
	return wrap(azureCode(err), a.Name(), "delete account", s.AccountName, err)
}

// blobClient builds the data-plane client from the account's first key.
func (a *Azure) blobClient(ctx context.Context) (*azblob.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.blob != nil {
		return a.blob, nil
	}

	s := a.settings
	keys, err := a.accounts.ListKeys(ctx, s.ResourceGroup, s.AccountName, nil)
	if err != nil {
		return nil, wrap(azureCode(err), a.Name(), "list keys of", s.AccountName, err)
	}
	var key string
	for _, k := range keys.Keys {
		if k != nil && k.Value != nil {
			key = *k.Value
			break
		}
	}
	if key == "" {
		return nil, cnserrors.New(cnserrors.ErrCodeInternal,
			fmt.Sprintf("azure: account %s returned no keys", s.AccountName))
	}

	cred, err := azblob.NewSharedKeyCredential(s.AccountName, key)
	if err != nil {
		return nil, wrap(cnserrors.ErrCodeInternal, a.Name(), "build credential for", s.AccountName, err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", s.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, wrap(cnserrors.ErrCodeInternal, a.Name(), "build client for", s.AccountName, err)
	}
	a.blob = client
	return client, nil
}

func flattenMetadata(in map[string]*string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func isAzureNotFound(err error) bool {
	var re *azcore.ResponseError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

func azureCode(err error) cnserrors.ErrorCode {
	var re *azcore.ResponseError
	if !errors.As(err, &re) {
		if errors.Is(err, context.DeadlineExceeded) {
			return cnserrors.ErrCodeTimeout
		}
		return cnserrors.ErrCodeUnavailable
	}
	switch {
	case re.StatusCode == http.StatusNotFound:
		return cnserrors.ErrCodeNotFound
	case re.StatusCode == http.StatusConflict:
		return cnserrors.ErrCodeAlreadyExists
	case re.StatusCode == http.StatusTooManyRequests || re.StatusCode >= http.StatusInternalServerError:
		return cnserrors.ErrCodeUnavailable
	default:
		return cnserrors.ErrCodeInternal
	}
}
