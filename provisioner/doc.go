// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package provisioner implements the plugins a CRM host runs when records
change.

The main one is the folder provisioner. On creation of a record it derives a
blob folder named after the record id, creates a zero-byte ".keep"
placeholder in it with a pre-signed SAS credential and writes the folder URL
onto the record:

	p := provisioner.New(provisioner.Config{
		Registration:   "case-folders",
		UnsecureConfig: "Account=contosostore;Container=case-folders",
		SecureConfig:   "?sv=2023-11-03&sig=...",
	})
	result, err := p.Run(ctx, provisioner.Host{
		EventInfo:  provisioner.StaticEvent{MessageName: "Create", ProducedID: &id, EntityTypeName: "incident"},
		Tracer:     tracer,
		DataWriter: writer,
	})

Run moves through the states idle, gated, configured, provisioned and
linked. Any failure after the gate ends in StateFailed and a single
*base.PluginError for the host. If the write-back fails the placeholder is
deleted again unless the registration sets Compensate=false; a failed
delete is reported as base.KindOrphanedPlaceholder.

The package also carries two small plugins: RejectPlugin, which blocks an
operation outright, and QueryToJSON, which serializes query results.
*/
package provisioner
