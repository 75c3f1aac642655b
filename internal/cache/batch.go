package cache

type opKind int

const (
	opSetQuantity opKind = iota
	opIncrementQuantity
	opSelect
	opDeselect
	opRemoveProduct
)

type batchOp struct {
	kind      opKind
	productID int64
	value     int64
}

// Batch collects cart writes for one shopper so they can be executed as a
// single MULTI/EXEC transaction.
type Batch struct {
	ops []batchOp
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) SetQuantity(productID, quantity int64) *Batch {
	b.ops = append(b.ops, batchOp{kind: opSetQuantity, productID: productID, value: quantity})
	return b
}

func (b *Batch) IncrementQuantity(productID, delta int64) *Batch {
	b.ops = append(b.ops, batchOp{kind: opIncrementQuantity, productID: productID, value: delta})
	return b
}

func (b *Batch) Select(productID int64) *Batch {
	b.ops = append(b.ops, batchOp{kind: opSelect, productID: productID})
	return b
}

func (b *Batch) Deselect(productID int64) *Batch {
	b.ops = append(b.ops, batchOp{kind: opDeselect, productID: productID})
	return b
}

// SetSelected selects or deselects depending on the flag.
func (b *Batch) SetSelected(productID int64, selected bool) *Batch {
	if selected {
		return b.Select(productID)
	}
	return b.Deselect(productID)
}

// RemoveProduct clears both the quantity and the selection of the product.
func (b *Batch) RemoveProduct(productID int64) *Batch {
	b.ops = append(b.ops, batchOp{kind: opRemoveProduct, productID: productID})
	return b
}

func (b *Batch) Len() int {
	return len(b.ops)
}
