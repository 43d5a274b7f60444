// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0

/*
Package azureblob creates and removes folder placeholders in Azure Blob
Storage.

# Overview

Blob Storage has no directories. A folder exists as soon as a blob exists
under its prefix, so a folder for a record is created by uploading an empty
".keep" blob:

	PUT https://{account}.blob.core.windows.net/{container}/{record id}/.keep?{sas}
	x-ms-blob-type: BlockBlob
	x-ms-version: 2023-11-03
	Content-Type: text/plain; charset=utf-8

The folder URL linked to the record is the prefix with a trailing slash and
no credential.

# Stores

Two PlaceholderStore implementations exist:

  - RESTStore sends the request above with net/http.
  - SDKStore uploads through the azblob client built with
    NewClientWithNoCredential and the SAS token on the endpoint.

Both bound each request with a timeout and report a non-2xx answer as a
*base.ProvisionError carrying the status code and reason phrase.
DeletePlaceholder is used to undo a placeholder whose record could not be
linked; a 404 is treated as success.

# Usage Example

	ref := azureblob.NewFolderReference(cfg, recordID)
	store := azureblob.NewRESTStore(azureblob.RESTConfig{Timeout: 10 * time.Second})

	if _, err := store.CreatePlaceholder(ctx, ref, cfg.CredentialToken); err != nil {
		return err
	}
	// link ref.FolderURL to the record

# Emulator

NewFolderReferenceAt accepts an endpoint override such as
http://127.0.0.1:10000/devstoreaccount1 for Azurite.

# Thread Safety

Stores hold no per-request state and are safe for concurrent use.
*/
package azureblob
