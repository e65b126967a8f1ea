package cart

// Action is a tagged mutation applied to a cart by Apply. Keeping the
// transition function pure (no I/O, no clock) means the stock check and the
// persistence write happen around it, in the Ledger, and the reducer itself
// can be tested exhaustively in memory.
type Action interface {
	isAction()
}

// PutItem inserts the item if absent or replaces its quantity if present.
// Replacement is deliberate: the caller supplies the full desired quantity,
// so repeating the same action is idempotent.
type PutItem struct {
	Item     LineItem
	Quantity int
}

// SetQuantity replaces the quantity of an existing line item.
type SetQuantity struct {
	ProductID string
	Quantity  int
}

// RemoveItem deletes the line item if present. Removing an absent product
// is a no-op, not an error.
type RemoveItem struct {
	ProductID string
}

// ClearItems empties the cart's line items, keeping address and payment
// method. Used as the post-commit side effect of order placement.
type ClearItems struct{}

// SetShippingAddress saves the checkout destination.
type SetShippingAddress struct {
	Address ShippingAddress
}

// SetPaymentMethod saves the selected payment method.
type SetPaymentMethod struct {
	Method string
}

func (PutItem) isAction()            {}
func (SetQuantity) isAction()        {}
func (RemoveItem) isAction()         {}
func (ClearItems) isAction()         {}
func (SetShippingAddress) isAction() {}
func (SetPaymentMethod) isAction()   {}

// Apply returns the cart after the action. The input cart is never mutated.
func Apply(c Cart, action Action) Cart {
	next := c.Clone()

	switch a := action.(type) {
	case PutItem:
		item := a.Item
		item.Quantity = a.Quantity
		replaced := false
		for i, it := range next.Items {
			if it.ProductID == item.ProductID {
				next.Items[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			next.Items = append(next.Items, item)
		}

	case SetQuantity:
		for i, it := range next.Items {
			if it.ProductID == a.ProductID {
				next.Items[i].Quantity = a.Quantity
				break
			}
		}

	case RemoveItem:
		items := next.Items[:0]
		for _, it := range next.Items {
			if it.ProductID != a.ProductID {
				items = append(items, it)
			}
		}
		next.Items = items

	case ClearItems:
		next.Items = nil

	case SetShippingAddress:
		next.ShippingAddress = a.Address

	case SetPaymentMethod:
		next.PaymentMethod = a.Method
	}

	return next
}
