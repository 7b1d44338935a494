package schema

// NewCategory describes product categories
func NewCategory() *Descriptor {
	return MustNew(Options{
		Entity:        "categories",
		Collection:    "product_categories",
		Subject:       "category",
		CreatedField:  "createdOn",
		ModifiedField: "modifiedOn",
	},
		Field{Name: "code", Kind: KindString, Required: true, Description: "Unique category code", Example: "C1"},
		Field{Name: "name", Kind: KindString, Required: true, Description: "Category name", Example: "Widgets"},
		Field{Name: "description", Kind: KindString, Required: true, Description: "Category description", Example: "All widgets"},
		Field{Name: "catalogId", Kind: KindString, Description: "Owning catalog ID", Example: "catalog-01"},
		Field{Name: "visibleToUserGroupIds", Kind: KindStringList, Description: "Semicolon-separated user group IDs", Example: "retail;b2b"},
		Field{Name: "subcategoryIds", Kind: KindStringList, Description: "Semicolon-separated child category IDs", Example: "c2;c3"},
		Field{Name: "productIds", Kind: KindStringList, Description: "Semicolon-separated product IDs", Example: "p1;p2;p3"},
		Field{Name: "createdBy", Kind: KindString, Immutable: true, Description: "Creator", Example: "admin"},
		Field{Name: "modifiedBy", Kind: KindString, Description: "Last modifier", Example: "admin"},
		Field{Name: "createdOn", Kind: KindDate, Immutable: true, Description: "Creation date (yyyy-MM-dd)", Example: "2024-01-15"},
		Field{Name: "modifiedOn", Kind: KindDate, Description: "Last modification date (yyyy-MM-dd)", Example: "2024-01-15"},
		Field{Name: "seoKeywords", Kind: KindString, Description: "SEO keywords", Example: "widgets tools"},
		Field{Name: "metaDescription", Kind: KindString, Description: "SEO meta description", Example: "Shop all widgets"},
	)
}

// NewReturnOrder describes return orders
func NewReturnOrder() *Descriptor {
	return MustNew(Options{
		Entity:        "return-orders",
		Collection:    "return_orders",
		Subject:       "return_order",
		CreatedField:  "createdOn",
		ModifiedField: "lastModifiedOn",
	},
		Field{Name: "name", Kind: KindString, Required: true, Description: "Returned item name", Example: "Blue mug"},
		Field{Name: "customerId", Kind: KindString, Required: true, Description: "Customer ID", Example: "cust-42"},
		Field{Name: "billingAddress", Kind: KindString, Required: true, Description: "Billing address", Example: "1 Main St"},
		Field{Name: "currencyISOCode", Kind: KindString, Required: true, Rules: "len=3,alpha,uppercase", Description: "ISO 4217 currency code", Example: "USD"},
		Field{Name: "grandTotalAmount", Kind: KindFloat, Rules: "gt=0", Description: "Grand total", Example: "120.50"},
		Field{Name: "paymentGroupId", Kind: KindString, Required: true, Description: "Payment group ID", Example: "pg-1"},
		Field{Name: "paymentMethodId", Kind: KindString, Required: true, Description: "Payment method ID", Example: "pm-1"},
		Field{Name: "poNumber", Kind: KindString, Required: true, Description: "Purchase order number", Example: "PO-1001"},
		Field{Name: "active", Kind: KindBool, Description: "Whether the return is active (true/false)", Example: "true"},
		Field{Name: "webStoreId", Kind: KindString, Required: true, Description: "Web store ID", Example: "store-eu"},
		Field{Name: "taxType", Kind: KindStringList, Description: "Semicolon-separated tax types", Example: "VAT;GST"},
		Field{Name: "totalAmount", Kind: KindFloat, Rules: "gte=0", Description: "Total amount", Example: "100"},
		Field{Name: "totalProductAmount", Kind: KindFloat, Rules: "gte=0", Description: "Total product amount", Example: "90"},
		Field{Name: "totalProductLineItemCount", Kind: KindInt, Rules: "gte=0", Description: "Product line item count", Example: "2"},
		Field{Name: "totalProductTaxAmount", Kind: KindFloat, Rules: "gte=0", Description: "Total product tax", Example: "10"},
		Field{Name: "totalProductCount", Kind: KindInt, Rules: "gte=0", Description: "Total product count", Example: "3"},
		Field{Name: "totalTaxAmount", Kind: KindFloat, Rules: "gte=0", Description: "Total tax", Example: "10.50"},
		Field{Name: "type", Kind: KindStringList, Required: true, Description: "Semicolon-separated return types", Example: "REFUND"},
		Field{Name: "uniqueProductCount", Kind: KindInt, Rules: "gte=0", Description: "Unique product count", Example: "2"},
		Field{Name: "lastModifiedOn", Kind: KindDate, Rules: "lte", Description: "Last modification date (yyyy-MM-dd)", Example: "2024-01-15"},
		Field{Name: "createdOn", Kind: KindDate, Immutable: true, Rules: "lte", Description: "Creation date (yyyy-MM-dd)", Example: "2024-01-15"},
		Field{Name: "modifiedBy", Kind: KindString, Required: true, Description: "Last modifier", Example: "agent-7"},
	)
}
