package responses

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Assembler", func() {
	var asm *Assembler

	BeforeEach(func() {
		asm = NewAssembler()
	})

	It("starts empty", func() {
		Expect(asm.Len()).To(Equal(0))
		Expect(asm.Text()).To(BeEmpty())
	})

	It("appends deltas to the same fragment", func() {
		asm.ApplyDelta(0, "ab")
		asm.ApplyDelta(0, "cd")
		Expect(asm.Len()).To(Equal(1))
		Expect(asm.Text()).To(Equal("abcd"))
	})

	It("fills gaps with empty fragments when a higher index arrives first", func() {
		asm.ApplyDelta(2, "third")
		Expect(asm.Len()).To(Equal(3))
		Expect(asm.Text()).To(Equal("\n\nthird"))
	})

	It("joins fragments in index order regardless of arrival order", func() {
		asm.ApplyDelta(2, "c")
		asm.ApplyDelta(0, "a")
		asm.ApplyDelta(1, "b")
		asm.ApplyDelta(0, "A")
		Expect(asm.Text()).To(Equal("aA\nb\nc"))
	})

	It("treats a negative index as zero", func() {
		asm.ApplyDelta(-3, "x")
		Expect(asm.Len()).To(Equal(1))
		Expect(asm.Text()).To(Equal("x"))
	})

	It("ignores indices above MaxContentIndex", func() {
		asm.ApplyDelta(0, "kept")
		asm.ApplyDelta(MaxContentIndex+1, "x")
		asm.ApplyDelta(20000000, "y")
		Expect(asm.Len()).To(Equal(1))
		Expect(asm.Text()).To(Equal("kept"))

		asm.ApplyDelta(MaxContentIndex, "last")
		Expect(asm.Len()).To(Equal(MaxContentIndex + 1))
	})
})
