// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/AleutianAI/AleutianUML/pkg/storage/badger"
)

func TestBadgerStore(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	store := NewBadgerStore(db)
	defer store.Close()
	ctx := context.Background()

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Create(ctx, Record{ID: id, UserID: "u/1", FileName: id + ".png", CreatedAt: at.Add(time.Duration(i) * time.Hour)}))
	}
	require.NoError(t, store.Create(ctx, Record{ID: "z", UserID: "u", CreatedAt: at}))
	assert.True(t, errors.Is(store.Create(ctx, Record{ID: "a", UserID: "u/1", CreatedAt: at}), ErrDuplicate))

	recs, err := store.ListByUser(ctx, "u/1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})

	recs, err = store.ListByUser(ctx, "u")
	require.NoError(t, err)
	require.Len(t, recs, 1, "user IDs never share a prefix")

	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b.png", got.FileName)

	require.NoError(t, store.Delete(ctx, "b"))
	_, err = store.Get(ctx, "b")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, "b"), ErrNotFound))
}

func TestBadgerBlobStore(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	blobs := NewBadgerBlobStore(db, "https://uml.example.com")
	defer blobs.Close()
	ctx := context.Background()

	u, err := blobs.Put(ctx, BucketImages, "id/my diagram.png", "image/png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://uml.example.com/api/blobs/images/id/my%20diagram.png", u)

	bucket, key, err := blobs.KeyFromURL(u)
	require.NoError(t, err)
	assert.Equal(t, BucketImages, bucket)
	assert.Equal(t, "id/my diagram.png", key)

	data, contentType, err := blobs.Get(ctx, bucket, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
	assert.Equal(t, "image/png", contentType)

	require.NoError(t, blobs.Delete(ctx, bucket, key))
	_, _, err = blobs.Get(ctx, bucket, key)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = blobs.Put(ctx, "", "k", "", nil)
	assert.Error(t, err)
	_, err = blobs.Put(ctx, BucketCode, "../escape", "", nil)
	assert.Error(t, err)

	for _, bad := range []string{
		"",
		"https://uml.example.com/other/images/a",
		"https://uml.example.com/api/blobs/images",
		"https://uml.example.com/api/blobs//key",
		"%zz",
	} {
		_, _, err := blobs.KeyFromURL(bad)
		assert.True(t, errors.Is(err, ErrMalformedBlobURL), bad)
	}
}

func TestGCSBlobStoreURLs(t *testing.T) {
	store, err := NewGCSBlobStore(context.Background(), "uml-history", "", option.WithoutAuthentication())
	require.NoError(t, err)
	defer store.Close()

	u := store.URL(BucketCode, "rec-1/a.png_code.txt")
	assert.Equal(t, "https://storage.googleapis.com/uml-history/code/rec-1/a.png_code.txt", u)

	bucket, key, err := store.KeyFromURL(u)
	require.NoError(t, err)
	assert.Equal(t, BucketCode, bucket)
	assert.Equal(t, "rec-1/a.png_code.txt", key)

	for _, bad := range []string{
		"https://example.com/uml-history/code/a",
		"https://storage.googleapis.com/other-bucket/code/a",
		"https://storage.googleapis.com/uml-history/code",
	} {
		_, _, err := store.KeyFromURL(bad)
		assert.True(t, errors.Is(err, ErrMalformedBlobURL), bad)
	}
}

func TestNewGCSBlobStoreErrors(t *testing.T) {
	ctx := context.Background()
	_, err := NewGCSBlobStore(ctx, "", "")
	assert.Error(t, err)

	_, err = NewGCSBlobStore(ctx, "b", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account key not found")

	_, err = NewGCSBlobStore(ctx, "b", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestHistoryRowRoundTrip(t *testing.T) {
	rec := Record{
		ID: "r", UserID: "u", FileName: "f.png", CreatedAt: time.Unix(1700000000, 0).UTC(),
		ImageURL: "i", CodeURL: "c", UMLCodeURL: "m", PlantUMLText: "p", GeneratedCode: "g", Language: "java",
	}
	assert.Equal(t, rec, rowFromRecord(rec).record())
	assert.Equal(t, "uml_history", historyRow{}.TableName())
}

// TestPostgresStore_Integration runs against a real database when
// UML_TEST_POSTGRES_DSN is set.
func TestPostgresStore_Integration(t *testing.T) {
	dsn := os.Getenv("UML_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("UML_TEST_POSTGRES_DSN not set")
	}
	store, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	user := "it-" + time.Now().Format("150405.000000")
	at := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Create(ctx, Record{ID: user + "-1", UserID: user, FileName: "a.png", CreatedAt: at, PlantUMLText: "x"}))
	require.NoError(t, store.Create(ctx, Record{ID: user + "-2", UserID: user, FileName: "b.png", CreatedAt: at.Add(time.Second), PlantUMLText: "y"}))
	assert.True(t, errors.Is(store.Create(ctx, Record{ID: user + "-1", UserID: user, FileName: "a.png", CreatedAt: at, PlantUMLText: "x"}), ErrDuplicate))

	recs, err := store.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, user+"-2", recs[0].ID)

	require.NoError(t, store.Delete(ctx, user+"-1"))
	require.NoError(t, store.Delete(ctx, user+"-2"))
	assert.True(t, errors.Is(store.Delete(ctx, user+"-2"), ErrNotFound))
}
