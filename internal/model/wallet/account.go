package wallet

// Network is the chain the provider is connected to.
type Network struct {
	ChainID string `json:"chainId"`
	Name    string `json:"name"`
}

// Account is the read-only wallet view returned to the client.
type Account struct {
	Address string  `json:"address"`
	Network Network `json:"network"`
	Balance string  `json:"balance"`
}
