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

package stack

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/NVIDIA/appstack/pkg/header"
	"github.com/NVIDIA/appstack/pkg/serializer"
	"github.com/NVIDIA/appstack/pkg/version"
)

// NewDocument builds the outputs document for one update.
func NewDocument(stack, updateID string, outputs map[string]string) *Document {
	return &Document{
		Header: header.New(header.KindStackOutputs,
			header.WithMetadata("version", version.Version)),
		Stack:     stack,
		UpdateID:  updateID,
		Timestamp: time.Now().UTC(),
		Outputs:   maps.Clone(outputs),
	}
}

// Publish writes doc to location (stdout when empty, a file or cm://namespace/name).
func Publish(ctx context.Context, location string, format serializer.Format, doc *Document) error {
	w := serializer.NewFileWriterOrStdout(format, location)
	if c, ok := w.(serializer.Closer); ok {
		defer c.Close()
	}
	if err := w.Serialize(ctx, doc); err != nil {
		return fmt.Errorf("failed to publish outputs: %w", err)
	}
	return nil
}
