/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements crash-safe file persistence for selectedbounds.
// Files are replaced transactionally (temp file in the same directory, fsync,
// rename) with a timestamped backup of the previous content. Scene documents
// live as <name>.scene.json files in a workspace directory, and each
// workspace keeps a disposable SQLite index at <workspace>/.sb/index.sqlite
// recording the settings last propagated to each scene.
package storage
