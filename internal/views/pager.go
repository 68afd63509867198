package views

import "github.com/parisxmas/fsdash/pkg/fsclient"

// Pager is the First/Previous/Next/Last control group.
type Pager struct {
	Current int
	Total   int

	First bool
	Prev  bool
	Next  bool
	Last  bool
}

func NewPager(m fsclient.Meta) Pager {
	p := Pager{Current: m.CurrentPage, Total: m.TotalPages}
	if p.Current < 1 {
		p.Current = 1
	}
	p.First = p.Current > 1
	p.Prev = p.First
	p.Next = p.Current < p.Total
	p.Last = p.Next
	return p
}

// Accept reports whether page is a valid navigation target.
func (p Pager) Accept(page int) bool {
	return page > 0 && page <= p.Total
}

func (p Pager) PrevPage() int { return p.Current - 1 }
func (p Pager) NextPage() int { return p.Current + 1 }
