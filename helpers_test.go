// Copyright (c) 2026 Quanta Exchange Contributors

package qx_test

import (
	"testing"

	qx "github.com/quantaex/qx-store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestQx(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "qx-store suite")
}

var _ = Describe("Helpers", func() {
	Context("fixed-point conversion", func() {
		It("converts fixed9 to float correctly", func() {
			Expect(qx.Fixed9ToFloat64(3456200000000)).To(Equal(3456.2))
		})
		It("converts float to fixed9 correctly", func() {
			Expect(qx.Float64ToFixed9(3456.2)).To(Equal(int64(3456200000000)))
		})
		It("round-trips through both conversions", func() {
			Expect(qx.Fixed9ToFloat64(qx.Float64ToFixed9(12.5))).To(Equal(12.5))
		})
	})
	Context("null-byte trimming", func() {
		It("trims trailing null bytes correctly", func() {
			Expect(qx.TrimNullBytes([]byte("IF2512\x00\x00\x00\x00"))).To(Equal("IF2512"))
		})
		It("does not malform a string with no null bytes", func() {
			Expect(qx.TrimNullBytes([]byte("IF2512"))).To(Equal("IF2512"))
		})
		It("returns empty for an all-null input", func() {
			Expect(qx.TrimNullBytes([]byte("\x00\x00\x00\x00"))).To(Equal(""))
		})
	})
})
