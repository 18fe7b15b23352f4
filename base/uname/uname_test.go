// Copyright 2025 Google LLC
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

package uname_test

import (
	"testing"

	"github.com/gx-org/tensorir/base/uname"
)

func TestName(t *testing.T) {
	unames := uname.New()
	unames.Register("dcost/dx_1", "b")
	tests := []struct {
		name, want string
	}{
		{name: "dcost/dx", want: "dcost/dx"},
		{name: "dcost/dx", want: "dcost/dx_2"},
		{name: "dcost/dx", want: "dcost/dx_3"},
		{name: "b", want: "b_1"},
		{name: "b_1", want: "b_1_1"},
		{name: "c", want: "c"},
	}
	for i, test := range tests {
		got := unames.Name(test.name)
		if got != test.want {
			t.Errorf("test %d: for name %s, got %s but want %s", i, test.name, got, test.want)
		}
	}
}
