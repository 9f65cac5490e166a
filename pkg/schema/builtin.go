// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package schema

import (
	"fmt"

	"github.com/teradata-labs/weft/pkg/types"
)

// BuiltinSchema returns the fixed logical schema for a SaaS source
// kind. SaaS sources expose a vendor API, not a database, so their
// read-model is defined here rather than introspected.
func BuiltinSchema(kind types.SourceKind) (*types.Schema, error) {
	switch kind {
	case types.KindEcommerceOrders:
		return ecommerceOrdersSchema(), nil
	case types.KindPayments:
		return paymentsSchema(), nil
	case types.KindAccounting:
		return accountingSchema(), nil
	default:
		return nil, fmt.Errorf("no built-in schema for kind %q", kind)
	}
}

func ecommerceOrdersSchema() *types.Schema {
	return &types.Schema{
		Tables: []types.Table{
			{
				Name: "orders",
				Columns: []types.Column{
					{Name: "id", Type: "bigint"},
					{Name: "order_number", Type: "text"},
					{Name: "customer_id", Type: "bigint", Nullable: true},
					{Name: "email", Type: "text", Nullable: true},
					{Name: "total_price", Type: "numeric"},
					{Name: "subtotal_price", Type: "numeric"},
					{Name: "total_discounts", Type: "numeric"},
					{Name: "currency", Type: "text"},
					{Name: "financial_status", Type: "text"},
					{Name: "fulfillment_status", Type: "text", Nullable: true},
					{Name: "created_at", Type: "timestamptz"},
					{Name: "updated_at", Type: "timestamptz"},
				},
			},
			{
				Name: "order_items",
				Columns: []types.Column{
					{Name: "id", Type: "bigint"},
					{Name: "order_id", Type: "bigint"},
					{Name: "product_id", Type: "bigint"},
					{Name: "title", Type: "text"},
					{Name: "sku", Type: "text", Nullable: true},
					{Name: "quantity", Type: "integer"},
					{Name: "price", Type: "numeric"},
				},
			},
			{
				Name: "customers",
				Columns: []types.Column{
					{Name: "id", Type: "bigint"},
					{Name: "email", Type: "text"},
					{Name: "first_name", Type: "text", Nullable: true},
					{Name: "last_name", Type: "text", Nullable: true},
					{Name: "orders_count", Type: "integer"},
					{Name: "total_spent", Type: "numeric"},
					{Name: "created_at", Type: "timestamptz"},
				},
			},
			{
				Name: "products",
				Columns: []types.Column{
					{Name: "id", Type: "bigint"},
					{Name: "title", Type: "text"},
					{Name: "product_type", Type: "text", Nullable: true},
					{Name: "vendor", Type: "text", Nullable: true},
					{Name: "created_at", Type: "timestamptz"},
				},
			},
		},
		Relationships: []types.Relationship{
			{FromColumn: "order_items.order_id", ToColumn: "orders.id", Cardinality: "many-to-one"},
			{FromColumn: "order_items.product_id", ToColumn: "products.id", Cardinality: "many-to-one"},
			{FromColumn: "orders.customer_id", ToColumn: "customers.id", Cardinality: "many-to-one"},
		},
	}
}

func paymentsSchema() *types.Schema {
	return &types.Schema{
		Tables: []types.Table{
			{
				Name: "charges",
				Columns: []types.Column{
					{Name: "id", Type: "text"},
					{Name: "customer_id", Type: "text", Nullable: true},
					{Name: "amount", Type: "bigint"},
					{Name: "amount_refunded", Type: "bigint"},
					{Name: "currency", Type: "text"},
					{Name: "status", Type: "text"},
					{Name: "paid", Type: "boolean"},
					{Name: "refunded", Type: "boolean"},
					{Name: "description", Type: "text", Nullable: true},
					{Name: "created_at", Type: "timestamptz"},
				},
			},
			{
				Name: "customers",
				Columns: []types.Column{
					{Name: "id", Type: "text"},
					{Name: "email", Type: "text", Nullable: true},
					{Name: "name", Type: "text", Nullable: true},
					{Name: "currency", Type: "text", Nullable: true},
					{Name: "delinquent", Type: "boolean"},
					{Name: "created_at", Type: "timestamptz"},
				},
			},
			{
				Name: "subscriptions",
				Columns: []types.Column{
					{Name: "id", Type: "text"},
					{Name: "customer_id", Type: "text"},
					{Name: "status", Type: "text"},
					{Name: "plan_id", Type: "text"},
					{Name: "plan_amount", Type: "bigint"},
					{Name: "current_period_start", Type: "timestamptz"},
					{Name: "current_period_end", Type: "timestamptz"},
					{Name: "created_at", Type: "timestamptz"},
				},
			},
			{
				Name: "refunds",
				Columns: []types.Column{
					{Name: "id", Type: "text"},
					{Name: "charge_id", Type: "text"},
					{Name: "amount", Type: "bigint"},
					{Name: "status", Type: "text"},
					{Name: "reason", Type: "text", Nullable: true},
					{Name: "created_at", Type: "timestamptz"},
				},
			},
		},
		Relationships: []types.Relationship{
			{FromColumn: "charges.customer_id", ToColumn: "customers.id", Cardinality: "many-to-one"},
			{FromColumn: "subscriptions.customer_id", ToColumn: "customers.id", Cardinality: "many-to-one"},
			{FromColumn: "refunds.charge_id", ToColumn: "charges.id", Cardinality: "many-to-one"},
		},
	}
}

func accountingSchema() *types.Schema {
	return &types.Schema{
		Tables: []types.Table{
			{
				Name: "invoices",
				Columns: []types.Column{
					{Name: "id", Type: "text"},
					{Name: "invoice_number", Type: "text"},
					{Name: "customer_id", Type: "text"},
					{Name: "total_amount", Type: "numeric"},
					{Name: "balance", Type: "numeric"},
					{Name: "currency", Type: "text"},
					{Name: "status", Type: "text"},
					{Name: "due_date", Type: "date", Nullable: true},
					{Name: "created_at", Type: "timestamptz"},
				},
			},
			{
				Name: "payments",
				Columns: []types.Column{
					{Name: "id", Type: "text"},
					{Name: "customer_id", Type: "text"},
					{Name: "invoice_id", Type: "text", Nullable: true},
					{Name: "amount", Type: "numeric"},
					{Name: "payment_method", Type: "text", Nullable: true},
					{Name: "created_at", Type: "timestamptz"},
				},
			},
			{
				Name: "expenses",
				Columns: []types.Column{
					{Name: "id", Type: "text"},
					{Name: "vendor_id", Type: "text", Nullable: true},
					{Name: "account", Type: "text"},
					{Name: "amount", Type: "numeric"},
					{Name: "category", Type: "text", Nullable: true},
					{Name: "created_at", Type: "timestamptz"},
				},
			},
			{
				Name: "accounts",
				Columns: []types.Column{
					{Name: "id", Type: "text"},
					{Name: "name", Type: "text"},
					{Name: "account_type", Type: "text"},
					{Name: "current_balance", Type: "numeric"},
				},
			},
		},
		Relationships: []types.Relationship{
			{FromColumn: "payments.invoice_id", ToColumn: "invoices.id", Cardinality: "many-to-one"},
			{FromColumn: "payments.customer_id", ToColumn: "invoices.customer_id", Cardinality: "many-to-one"},
		},
	}
}
