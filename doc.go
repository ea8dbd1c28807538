// Package binvecdb is a compact vector database for binary (1-bit per
// dimension) embeddings with cascading rescoring against higher-fidelity
// representations of the same documents.
//
// Documents are stored at three fidelities: bit-packed binary embeddings in
// a flat Hamming index, int8 embeddings alongside the payload in a durable
// document store, and full-precision float embeddings used only at query
// time. A search filters with the cheapest representation first and refines
// with costlier ones on a shrinking candidate set:
//
//	Phase I   Hamming k-NN over the binary index
//	Phase II  dot product of the float query against unpacked ±1 candidates
//	Phase III cosine similarity against the stored int8 embeddings
//
// Embedding generation is an external capability injected as an
// embedding.Embedder; the database records the model identifier in
// config.json and refuses to reopen with a different model.
//
// # Usage
//
//	embedder, _ := embedding.NewClient(embedding.Config{
//	    BaseURL: "https://api.cohere.com/v1",
//	    APIKey:  os.Getenv("COHERE_API_KEY"),
//	})
//
//	db, err := binvecdb.Open[string]("./data", embedder)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	err = db.AddDocuments(ctx, []int64{1, 2}, []string{"first", "second"},
//	    func(doc string) (string, error) { return doc, nil })
//
//	result, err := db.Search(ctx, "first", 5)
//	if err == nil && result.Confident {
//	    for _, hit := range result.Hits {
//	        fmt.Println(hit.DocID, hit.CosineScore, hit.Document)
//	    }
//	}
package binvecdb
