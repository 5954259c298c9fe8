/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDependenciesStaticImport(t *testing.T) {
	src := []byte(`import { foo } from "./foo";` + "\n" + `console.log(foo);`)
	assert.Equal(t, []string{"./foo"}, extractDependencies(src))
}

func TestExtractDependenciesRequireAndDynamicImport(t *testing.T) {
	src := []byte(`
const a = require('./a');
export * from "./b";
async function load() {
  return import('./c');
}
`)
	assert.ElementsMatch(t, []string{"./a", "./b", "./c"}, extractDependencies(src))
}

func TestExtractDependenciesIgnoresNonImportCalls(t *testing.T) {
	src := []byte(`console.log("./not-a-dependency");`)
	assert.Empty(t, extractDependencies(src))
}

func TestExtractDependenciesBareSpecifierIsReturnedUnresolved(t *testing.T) {
	src := []byte(`import { html } from "lit";`)
	assert.Equal(t, []string{"lit"}, extractDependencies(src))
}
